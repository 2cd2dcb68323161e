package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenancy/internal/clock"
	directorydomain "github.com/smallbiznis/tenancy/internal/directory/domain"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/tenancy/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
	"github.com/smallbiznis/tenancy/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	Directory  directorydomain.Store
	InvoiceSvc invoicedomain.Service
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	directory  directorydomain.Store
	invoiceSvc invoicedomain.Service
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		directory:  p.Directory,
		invoiceSvc: p.InvoiceSvc,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Create(ctx context.Context, input paymentdomain.CreatePaymentInput) (*paymentdomain.Payment, error) {
	if input.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	if !paymentdomain.ValidMethod(input.Method) {
		return nil, paymentdomain.ErrInvalidMethod
	}
	status := input.Status
	if status == "" {
		status = paymentdomain.PaymentStatusPending
	}
	if status != paymentdomain.PaymentStatusPending && status != paymentdomain.PaymentStatusCompleted {
		return nil, paymentdomain.ErrInvalidPaymentState
	}

	if _, err := s.directory.FindTenant(ctx, input.TenantID, input.OrgID); err != nil {
		return nil, err
	}
	if input.InvoiceID != nil {
		invoice, err := s.invoiceSvc.GetByID(ctx, input.OrgID, *input.InvoiceID)
		if err != nil {
			return nil, err
		}
		if invoice.TenantID != input.TenantID {
			return nil, paymentdomain.ErrInvoiceMismatch
		}
	}

	now := s.clock.Now()
	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}

	payment := &paymentdomain.Payment{
		ID:                   s.genID.Generate(),
		OrgID:                input.OrgID,
		TenantID:             input.TenantID,
		InvoiceID:            input.InvoiceID,
		Amount:               input.Amount,
		Method:               input.Method,
		PaymentDate:          paymentDate,
		Status:               status,
		ProviderTxnID:        input.ProviderTxnID,
		ReconciliationStatus: paymentdomain.ReconciliationPending,
		ReceiptURL:           input.ReceiptURL,
		Notes:                input.Notes,
		Metadata:             input.Metadata,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if ref := strings.TrimSpace(input.ReferenceNumber); ref != "" {
		payment.ReferenceNumber = &ref
	}
	if status == paymentdomain.PaymentStatusCompleted {
		payment.ReconciliationStatus = paymentdomain.ReconciliationReconciled
	}

	// Insert and settle in one transaction; the unique reference index is the
	// idempotency gate, never a prior existence check.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, payment); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return paymentdomain.ErrDuplicateReference
			}
			return err
		}
		if status == paymentdomain.PaymentStatusCompleted && payment.InvoiceID != nil {
			return s.settleInvoice(ctx, tx, payment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordPayment(string(payment.Method), string(payment.Status))
	}
	return payment, nil
}

func (s *Service) Update(ctx context.Context, orgID, id snowflake.ID, patch paymentdomain.UpdatePaymentInput) (*paymentdomain.Payment, error) {
	var updated *paymentdomain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if payment.Status == paymentdomain.PaymentStatusRefunded {
			return paymentdomain.ErrInvalidPaymentState
		}

		finalizing := patch.Status != nil &&
			(*patch.Status == paymentdomain.PaymentStatusCompleted ||
				*patch.Status == paymentdomain.PaymentStatusFailed)
		if patch.Status != nil && !finalizing && *patch.Status != paymentdomain.PaymentStatusPending {
			// refunds go through Refund, never a status patch
			return paymentdomain.ErrInvalidPaymentState
		}

		pending := payment.Status == paymentdomain.PaymentStatusPending
		touchesFields := patch.Amount != nil || patch.Method != nil ||
			patch.PaymentDate != nil || patch.Notes != nil
		if touchesFields && !pending {
			return paymentdomain.ErrPaymentImmutable
		}

		if patch.Amount != nil {
			if *patch.Amount <= 0 {
				return paymentdomain.ErrInvalidAmount
			}
			payment.Amount = *patch.Amount
		}
		if patch.Method != nil {
			if !paymentdomain.ValidMethod(*patch.Method) {
				return paymentdomain.ErrInvalidMethod
			}
			payment.Method = *patch.Method
		}
		if patch.PaymentDate != nil {
			payment.PaymentDate = *patch.PaymentDate
		}
		if patch.ProviderTxnID != nil {
			payment.ProviderTxnID = *patch.ProviderTxnID
		}
		if patch.ReconciliationStatus != nil {
			if !paymentdomain.ValidReconciliationStatus(*patch.ReconciliationStatus) {
				return paymentdomain.ErrInvalidPaymentState
			}
			payment.ReconciliationStatus = *patch.ReconciliationStatus
		}
		if patch.FailureReason != nil {
			payment.FailureReason = *patch.FailureReason
		}
		if patch.ReceiptURL != nil {
			payment.ReceiptURL = *patch.ReceiptURL
		}
		if patch.Notes != nil {
			payment.Notes = *patch.Notes
		}

		completing := false
		if patch.Status != nil && *patch.Status != payment.Status {
			switch *patch.Status {
			case paymentdomain.PaymentStatusCompleted:
				completing = true
				payment.ReconciliationStatus = paymentdomain.ReconciliationReconciled
			case paymentdomain.PaymentStatusFailed:
				payment.RetryCount++
			}
			payment.Status = *patch.Status
		}

		payment.UpdatedAt = s.clock.Now()
		if err := s.repo.Save(ctx, tx, payment); err != nil {
			return err
		}
		if completing && payment.InvoiceID != nil {
			if err := s.settleInvoice(ctx, tx, payment); err != nil {
				return err
			}
		}
		updated = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Refund(ctx context.Context, orgID, id snowflake.ID) (*paymentdomain.Payment, error) {
	var refunded *paymentdomain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if payment.Status != paymentdomain.PaymentStatusCompleted {
			return paymentdomain.ErrInvalidPaymentState
		}

		payment.Status = paymentdomain.PaymentStatusRefunded
		payment.UpdatedAt = s.clock.Now()
		if err := s.repo.Save(ctx, tx, payment); err != nil {
			return err
		}
		if payment.InvoiceID != nil {
			if err := s.settleInvoice(ctx, tx, payment); err != nil {
				return err
			}
		}
		refunded = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordPayment(string(refunded.Method), string(refunded.Status))
	}
	return refunded, nil
}

func (s *Service) GetByID(ctx context.Context, orgID, id snowflake.ID) (*paymentdomain.Payment, error) {
	return s.repo.FindByID(ctx, s.db, orgID, id)
}

func (s *Service) List(ctx context.Context, req paymentdomain.ListPaymentRequest) ([]paymentdomain.Payment, error) {
	return s.repo.List(ctx, s.db, req)
}

func (s *Service) settleInvoice(ctx context.Context, tx *gorm.DB, payment *paymentdomain.Payment) error {
	result, err := s.invoiceSvc.RecomputeSettlement(ctx, tx, payment.OrgID, *payment.InvoiceID)
	if err != nil {
		return err
	}
	if result.Changed {
		s.log.Info("invoice settlement recomputed",
			zap.String("org_id", payment.OrgID.String()),
			zap.String("invoice_id", payment.InvoiceID.String()),
			zap.String("status", string(result.Status)),
			zap.Int64("completed_total", result.CompletedTotal),
		)
		if result.Status == invoicedomain.InvoiceStatusPaid && s.obsMetrics != nil {
			s.obsMetrics.RecordInvoiceSettled()
		}
	}
	return nil
}
