package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrPaymentNotFound     = errors.New("payment_not_found")
	ErrDuplicateReference  = errors.New("duplicate_reference")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidMethod       = errors.New("invalid_method")
	ErrInvalidPaymentState = errors.New("invalid_payment_state")
	ErrPaymentImmutable    = errors.New("payment_immutable")
	ErrInvoiceMismatch     = errors.New("invoice_mismatch")
)

// CreatePaymentInput records a transfer of funds. ReferenceNumber, when set,
// must be unique within the organization.
type CreatePaymentInput struct {
	OrgID     snowflake.ID
	TenantID  snowflake.ID
	InvoiceID *snowflake.ID

	Amount      int64
	Method      Method
	PaymentDate time.Time

	ReferenceNumber string
	Status          PaymentStatus
	ProviderTxnID   string
	ReceiptURL      string
	Notes           string
	Metadata        map[string]any
}

// UpdatePaymentInput patches a payment. Nil fields are untouched.
type UpdatePaymentInput struct {
	Amount               *int64
	Method               *Method
	PaymentDate          *time.Time
	Status               *PaymentStatus
	ProviderTxnID        *string
	ReconciliationStatus *ReconciliationStatus
	FailureReason        *string
	ReceiptURL           *string
	Notes                *string
}

type ListPaymentRequest struct {
	OrgID     snowflake.ID
	TenantID  *snowflake.ID
	InvoiceID *snowflake.ID
	Status    *PaymentStatus
}

type Service interface {
	Create(ctx context.Context, input CreatePaymentInput) (*Payment, error)
	Update(ctx context.Context, orgID, id snowflake.ID, patch UpdatePaymentInput) (*Payment, error)
	Refund(ctx context.Context, orgID, id snowflake.ID) (*Payment, error)
	GetByID(ctx context.Context, orgID, id snowflake.ID) (*Payment, error)
	List(ctx context.Context, req ListPaymentRequest) ([]Payment, error)
}
