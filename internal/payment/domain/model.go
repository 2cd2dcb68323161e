package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PaymentStatus represents payment lifecycle states.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func ValidStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// Method identifies the rail the funds moved over.
type Method string

const (
	MethodCash         Method = "cash"
	MethodMpesa        Method = "mpesa"
	MethodPaystack     Method = "paystack"
	MethodBankTransfer Method = "bank_transfer"
	MethodCheque       Method = "cheque"
	MethodOther        Method = "other"
)

func ValidMethod(m Method) bool {
	switch m {
	case MethodCash, MethodMpesa, MethodPaystack, MethodBankTransfer, MethodCheque, MethodOther:
		return true
	}
	return false
}

// ReconciliationStatus tracks back-office matching independently of the
// payment lifecycle.
type ReconciliationStatus string

const (
	ReconciliationPending    ReconciliationStatus = "pending"
	ReconciliationReconciled ReconciliationStatus = "reconciled"
	ReconciliationDisputed   ReconciliationStatus = "disputed"
)

func ValidReconciliationStatus(s ReconciliationStatus) bool {
	switch s {
	case ReconciliationPending, ReconciliationReconciled, ReconciliationDisputed:
		return true
	}
	return false
}

// Payment is one accepted or attempted transfer of funds. ReferenceNumber is
// the organization-wide idempotency key: the unique index on
// (org_id, reference_number) is what makes webhook replay safe, and NULL
// references never collide.
type Payment struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_payments_org_reference" json:"org_id"`
	TenantID  snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	InvoiceID *snowflake.ID `gorm:"index" json:"invoice_id,omitempty"`

	Amount      int64     `gorm:"not null" json:"amount"`
	Method      Method    `gorm:"type:text;not null" json:"method"`
	PaymentDate time.Time `gorm:"not null" json:"payment_date"`

	ReferenceNumber *string       `gorm:"type:text;uniqueIndex:ux_payments_org_reference" json:"reference_number,omitempty"`
	Status          PaymentStatus `gorm:"type:text;not null;default:'pending'" json:"status"`

	ProviderTxnID        string               `gorm:"type:text" json:"provider_txn_id,omitempty"`
	ReconciliationStatus ReconciliationStatus `gorm:"type:text;not null;default:'pending'" json:"reconciliation_status"`
	FailureReason        string               `gorm:"type:text" json:"failure_reason,omitempty"`
	RetryCount           int                  `gorm:"not null;default:0" json:"retry_count"`
	ReceiptURL           string               `gorm:"type:text" json:"receipt_url,omitempty"`
	Notes                string               `gorm:"type:text" json:"notes,omitempty"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
