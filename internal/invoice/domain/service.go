package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvoiceNotFound        = errors.New("invoice_not_found")
	ErrLeaseMismatch          = errors.New("lease_mismatch")
	ErrEmptyItems             = errors.New("empty_items")
	ErrInvalidItemAmount      = errors.New("invalid_item_amount")
	ErrInvalidItemKind        = errors.New("invalid_item_kind")
	ErrInvalidPeriod          = errors.New("invalid_period")
	ErrInvalidDates           = errors.New("invalid_dates")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvoiceImmutable       = errors.New("invoice_immutable")
	ErrInvoiceAlreadyPaid     = errors.New("invoice_already_paid")
	ErrDuplicateInvoiceNumber = errors.New("duplicate_invoice_number")
)

// LineItemInput is one line of a new or patched invoice.
type LineItemInput struct {
	Description string   `json:"description"`
	Kind        ItemKind `json:"kind"`
	Amount      int64    `json:"amount"`
}

type CreateInvoiceInput struct {
	OrgID    snowflake.ID
	LeaseID  snowflake.ID
	TenantID snowflake.ID
	UnitID   snowflake.ID

	// InvoiceNumber is generated when empty.
	InvoiceNumber string

	IssueDate   time.Time
	DueDate     time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time

	Items     []LineItemInput
	TaxAmount int64
	Notes     string
}

// RentInvoiceInput creates a rent invoice priced by the rent calculator.
type RentInvoiceInput struct {
	OrgID   snowflake.ID
	LeaseID snowflake.ID

	IssueDate   time.Time
	DueDate     time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time

	TaxAmount int64
	Notes     string
}

// UpdateInvoiceInput patches an invoice. Nil fields are untouched. Only
// Status and Notes are honored once the invoice leaves draft.
type UpdateInvoiceInput struct {
	Items       *[]LineItemInput
	TaxAmount   *int64
	IssueDate   *time.Time
	DueDate     *time.Time
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Notes       *string
	Status      *InvoiceStatus
	PaidAt      *time.Time
}

type ListInvoiceRequest struct {
	OrgID    snowflake.ID
	TenantID *snowflake.ID
	LeaseID  *snowflake.ID
	Status   *InvoiceStatus
}

// SettlementResult reports the outcome of a settlement recomputation.
type SettlementResult struct {
	Status         InvoiceStatus
	CompletedTotal int64
	InvoiceTotal   int64
	Changed        bool
}

type Service interface {
	Create(ctx context.Context, input CreateInvoiceInput) (*Invoice, error)
	CreateRentInvoice(ctx context.Context, input RentInvoiceInput) (*Invoice, error)
	Update(ctx context.Context, orgID, id snowflake.ID, patch UpdateInvoiceInput) (*Invoice, error)
	UpdateStatus(ctx context.Context, orgID, id snowflake.ID, status InvoiceStatus, paidAt *time.Time) (*Invoice, error)
	Cancel(ctx context.Context, orgID, id snowflake.ID) (*Invoice, error)
	GetByID(ctx context.Context, orgID, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) ([]Invoice, error)

	// RecomputeSettlement re-derives the invoice status from the sum of
	// completed payments, inside the caller's transaction. The invoice row is
	// locked for the duration so concurrent completions serialize.
	RecomputeSettlement(ctx context.Context, tx *gorm.DB, orgID, invoiceID snowflake.ID) (SettlementResult, error)

	// MarkOverdue flips sent invoices past their due date to overdue.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}
