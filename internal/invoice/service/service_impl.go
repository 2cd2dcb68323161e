package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenancy/internal/clock"
	directorydomain "github.com/smallbiznis/tenancy/internal/directory/domain"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	"github.com/smallbiznis/tenancy/internal/rent"
	"github.com/smallbiznis/tenancy/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const numberAttempts = 3

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Directory directorydomain.Store
	Clock     clock.Clock
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	directory directorydomain.Store
	clock     clock.Clock
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		directory: p.Directory,
		clock:     p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, input invoicedomain.CreateInvoiceInput) (*invoicedomain.Invoice, error) {
	if err := s.validateCreate(ctx, &input); err != nil {
		return nil, err
	}

	subtotal := sumItems(input.Items)
	now := s.clock.Now()

	invoice := invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		OrgID:          input.OrgID,
		LeaseID:        input.LeaseID,
		TenantID:       input.TenantID,
		UnitID:         input.UnitID,
		InvoiceNumber:  strings.TrimSpace(input.InvoiceNumber),
		Status:         invoicedomain.InvoiceStatusDraft,
		IssueDate:      input.IssueDate,
		DueDate:        input.DueDate,
		PeriodStart:    input.PeriodStart,
		PeriodEnd:      input.PeriodEnd,
		SubtotalAmount: subtotal,
		TaxAmount:      input.TaxAmount,
		TotalAmount:    subtotal + input.TaxAmount,
		Notes:          input.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	generate := invoice.InvoiceNumber == ""

	// The number generator reads the current maximum and can race a
	// concurrent creator onto the same "next" value. The unique index on
	// (org_id, invoice_number) is the arbiter; the loser retries with a fresh
	// read instead of trusting the first one.
	var lastErr error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if generate {
				number, err := s.nextInvoiceNumber(ctx, tx, input.OrgID, invoice.IssueDate.Year())
				if err != nil {
					return err
				}
				invoice.InvoiceNumber = number
			}
			if err := tx.Create(&invoice).Error; err != nil {
				return err
			}
			for i := range input.Items {
				item := invoicedomain.InvoiceItem{
					ID:          s.genID.Generate(),
					OrgID:       input.OrgID,
					InvoiceID:   invoice.ID,
					Description: input.Items[i].Description,
					Kind:        input.Items[i].Kind,
					Amount:      input.Items[i].Amount,
					CreatedAt:   now,
				}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
				invoice.Items = append(invoice.Items, item)
			}
			return nil
		})
		if err == nil {
			return &invoice, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		if !generate {
			return nil, invoicedomain.ErrDuplicateInvoiceNumber
		}
		invoice.Items = nil
		lastErr = err
		s.log.Debug("invoice number collision, retrying",
			zap.String("org_id", input.OrgID.String()),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, lastErr
}

func (s *Service) CreateRentInvoice(ctx context.Context, input invoicedomain.RentInvoiceInput) (*invoicedomain.Invoice, error) {
	lease, err := s.directory.FindLease(ctx, input.LeaseID, input.OrgID)
	if err != nil {
		return nil, err
	}
	unit, err := s.directory.FindUnit(ctx, lease.UnitID, input.OrgID)
	if err != nil {
		return nil, err
	}
	building, err := s.directory.FindBuilding(ctx, unit.BuildingID, input.OrgID)
	if err != nil {
		return nil, err
	}

	result, err := rent.Calculate(rent.PolicyFromBuilding(building), rent.AttributesFromUnit(unit))
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Rent for unit %s, %s to %s",
		unit.UnitNumber,
		input.PeriodStart.Format("2006-01-02"),
		input.PeriodEnd.Format("2006-01-02"),
	)

	return s.Create(ctx, invoicedomain.CreateInvoiceInput{
		OrgID:       input.OrgID,
		LeaseID:     lease.ID,
		TenantID:    lease.TenantID,
		UnitID:      lease.UnitID,
		IssueDate:   input.IssueDate,
		DueDate:     input.DueDate,
		PeriodStart: input.PeriodStart,
		PeriodEnd:   input.PeriodEnd,
		Items: []invoicedomain.LineItemInput{
			{Description: description, Kind: invoicedomain.ItemKindRent, Amount: result.Total},
		},
		TaxAmount: input.TaxAmount,
		Notes:     input.Notes,
	})
}

func (s *Service) Update(ctx context.Context, orgID, id snowflake.ID, patch invoicedomain.UpdateInvoiceInput) (*invoicedomain.Invoice, error) {
	var updated *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}

		draft := invoice.Status == invoicedomain.InvoiceStatusDraft
		touchesContent := patch.Items != nil || patch.TaxAmount != nil ||
			patch.IssueDate != nil || patch.DueDate != nil ||
			patch.PeriodStart != nil || patch.PeriodEnd != nil
		if touchesContent && !draft {
			return invoicedomain.ErrInvoiceImmutable
		}

		if patch.Status != nil {
			if err := applyStatus(invoice, *patch.Status, patch.PaidAt, s.clock.Now()); err != nil {
				return err
			}
		}
		if patch.Notes != nil {
			invoice.Notes = *patch.Notes
		}

		if patch.IssueDate != nil {
			invoice.IssueDate = *patch.IssueDate
		}
		if patch.DueDate != nil {
			invoice.DueDate = *patch.DueDate
		}
		if patch.PeriodStart != nil {
			invoice.PeriodStart = *patch.PeriodStart
		}
		if patch.PeriodEnd != nil {
			invoice.PeriodEnd = *patch.PeriodEnd
		}
		if invoice.PeriodEnd.Before(invoice.PeriodStart) {
			return invoicedomain.ErrInvalidPeriod
		}
		if invoice.DueDate.Before(invoice.IssueDate) {
			return invoicedomain.ErrInvalidDates
		}

		if patch.Items != nil {
			items := *patch.Items
			if err := validateItems(items); err != nil {
				return err
			}
			if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&invoicedomain.InvoiceItem{}).Error; err != nil {
				return err
			}
			invoice.Items = nil
			for i := range items {
				item := invoicedomain.InvoiceItem{
					ID:          s.genID.Generate(),
					OrgID:       orgID,
					InvoiceID:   invoice.ID,
					Description: items[i].Description,
					Kind:        items[i].Kind,
					Amount:      items[i].Amount,
					CreatedAt:   s.clock.Now(),
				}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
				invoice.Items = append(invoice.Items, item)
			}
			invoice.SubtotalAmount = sumItems(items)
		}
		if patch.TaxAmount != nil {
			invoice.TaxAmount = *patch.TaxAmount
		}
		invoice.TotalAmount = invoice.SubtotalAmount + invoice.TaxAmount
		invoice.UpdatedAt = s.clock.Now()

		if err := tx.Save(invoice).Error; err != nil {
			return err
		}
		updated = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated.Items == nil {
		_ = s.attachItems(ctx, updated)
	}
	return updated, nil
}

func (s *Service) UpdateStatus(ctx context.Context, orgID, id snowflake.ID, status invoicedomain.InvoiceStatus, paidAt *time.Time) (*invoicedomain.Invoice, error) {
	var updated *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if err := applyStatus(invoice, status, paidAt, s.clock.Now()); err != nil {
			return err
		}
		invoice.UpdatedAt = s.clock.Now()
		if err := tx.Save(invoice).Error; err != nil {
			return err
		}
		updated = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return s.UpdateStatus(ctx, orgID, id, invoicedomain.InvoiceStatusCancelled, nil)
}

func (s *Service) GetByID(ctx context.Context, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, invoicedomain.ErrInvoiceNotFound
		}
		return nil, err
	}
	if err := s.attachItems(ctx, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) ([]invoicedomain.Invoice, error) {
	query := s.db.WithContext(ctx).Where("org_id = ?", req.OrgID)
	if req.TenantID != nil {
		query = query.Where("tenant_id = ?", *req.TenantID)
	}
	if req.LeaseID != nil {
		query = query.Where("lease_id = ?", *req.LeaseID)
	}
	if req.Status != nil {
		query = query.Where("status = ?", *req.Status)
	}

	var invoices []invoicedomain.Invoice
	if err := query.Order("created_at DESC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *Service) RecomputeSettlement(ctx context.Context, tx *gorm.DB, orgID, invoiceID snowflake.ID) (invoicedomain.SettlementResult, error) {
	invoice, err := s.loadForUpdate(ctx, tx, orgID, invoiceID)
	if err != nil {
		return invoicedomain.SettlementResult{}, err
	}

	var completed int64
	err = tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0)
		 FROM payments
		 WHERE org_id = ? AND invoice_id = ? AND status = 'completed'`,
		orgID,
		invoiceID,
	).Scan(&completed).Error
	if err != nil {
		return invoicedomain.SettlementResult{}, err
	}

	result := invoicedomain.SettlementResult{
		Status:         invoice.Status,
		CompletedTotal: completed,
		InvoiceTotal:   invoice.TotalAmount,
	}

	now := s.clock.Now()
	switch {
	case invoice.Status == invoicedomain.InvoiceStatusCancelled:
		// Payments against a cancelled invoice are recorded but never revive it.
	case completed >= invoice.TotalAmount && invoice.TotalAmount > 0 &&
		invoice.Status != invoicedomain.InvoiceStatusPaid:
		invoice.Status = invoicedomain.InvoiceStatusPaid
		invoice.PaidAt = &now
		result.Changed = true
	case completed < invoice.TotalAmount && invoice.Status == invoicedomain.InvoiceStatusPaid:
		// A refund dropped the cumulative total back under the invoice total.
		invoice.Status = invoicedomain.InvoiceStatusSent
		invoice.PaidAt = nil
		result.Changed = true
	}

	if result.Changed {
		invoice.UpdatedAt = now
		if err := tx.Save(invoice).Error; err != nil {
			return invoicedomain.SettlementResult{}, err
		}
		result.Status = invoice.Status
	}
	return result, nil
}

func (s *Service) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, paid_at = NULL, updated_at = ?
		 WHERE status = ? AND due_date < ?`,
		invoicedomain.InvoiceStatusOverdue,
		now,
		invoicedomain.InvoiceStatusSent,
		now,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (s *Service) validateCreate(ctx context.Context, input *invoicedomain.CreateInvoiceInput) error {
	lease, err := s.directory.FindLease(ctx, input.LeaseID, input.OrgID)
	if err != nil {
		return err
	}
	if input.TenantID == 0 {
		input.TenantID = lease.TenantID
	}
	if input.UnitID == 0 {
		input.UnitID = lease.UnitID
	}
	if lease.TenantID != input.TenantID || lease.UnitID != input.UnitID {
		return invoicedomain.ErrLeaseMismatch
	}
	if err := validateItems(input.Items); err != nil {
		return err
	}
	if input.TaxAmount < 0 {
		return invoicedomain.ErrInvalidItemAmount
	}
	if input.PeriodEnd.Before(input.PeriodStart) {
		return invoicedomain.ErrInvalidPeriod
	}
	if input.DueDate.Before(input.IssueDate) {
		return invoicedomain.ErrInvalidDates
	}
	return nil
}

func validateItems(items []invoicedomain.LineItemInput) error {
	if len(items) == 0 {
		return invoicedomain.ErrEmptyItems
	}
	for i := range items {
		if items[i].Amount < 0 {
			return invoicedomain.ErrInvalidItemAmount
		}
		if items[i].Kind == "" {
			items[i].Kind = invoicedomain.ItemKindOther
		}
		if !invoicedomain.ValidItemKind(items[i].Kind) {
			return invoicedomain.ErrInvalidItemKind
		}
	}
	return nil
}

// applyStatus enforces the lifecycle rules around paid_at stamping and
// cancellation of settled invoices.
func applyStatus(invoice *invoicedomain.Invoice, status invoicedomain.InvoiceStatus, paidAt *time.Time, now time.Time) error {
	if !invoicedomain.ValidStatus(status) {
		return invoicedomain.ErrInvalidStatus
	}
	if status == invoicedomain.InvoiceStatusCancelled &&
		invoice.Status == invoicedomain.InvoiceStatusPaid {
		return invoicedomain.ErrInvoiceAlreadyPaid
	}

	switch status {
	case invoicedomain.InvoiceStatusPaid:
		stamp := now
		if paidAt != nil {
			stamp = *paidAt
		}
		invoice.PaidAt = &stamp
	default:
		invoice.PaidAt = nil
	}
	invoice.Status = status
	return nil
}

func (s *Service) loadForUpdate(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.ForUpdate(tx.WithContext(ctx)).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, invoicedomain.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *Service) attachItems(ctx context.Context, invoice *invoicedomain.Invoice) error {
	var items []invoicedomain.InvoiceItem
	err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoice.ID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return err
	}
	invoice.Items = items
	return nil
}

// nextInvoiceNumber derives INV-<year>-<seq> from the highest sequence the
// organization has issued this calendar year. Sequences are zero-padded to
// three digits but keep growing past 999, so ordering goes by length first;
// plain lexicographic order would rank 999 above 1000 forever.
func (s *Service) nextInvoiceNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, year int) (string, error) {
	prefix := fmt.Sprintf("INV-%d-", year)

	var last string
	err := tx.WithContext(ctx).Raw(
		`SELECT invoice_number
		 FROM invoices
		 WHERE org_id = ? AND invoice_number LIKE ?
		 ORDER BY LENGTH(invoice_number) DESC, invoice_number DESC
		 LIMIT 1`,
		orgID,
		prefix+"%",
	).Scan(&last).Error
	if err != nil {
		return "", err
	}

	next := 1
	if last != "" {
		seq, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err == nil {
			next = seq + 1
		}
	}
	return fmt.Sprintf("%s%03d", prefix, next), nil
}

func sumItems(items []invoicedomain.LineItemInput) int64 {
	var subtotal int64
	for i := range items {
		subtotal += items[i].Amount
	}
	return subtotal
}
