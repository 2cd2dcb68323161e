// Package domain contains persistence models for the invoice ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s InvoiceStatus) bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// ItemKind classifies an invoice line.
type ItemKind string

const (
	ItemKindRent    ItemKind = "rent"
	ItemKindCharge  ItemKind = "charge"
	ItemKindPenalty ItemKind = "penalty"
	ItemKindDeposit ItemKind = "deposit"
	ItemKindOther   ItemKind = "other"
)

func ValidItemKind(k ItemKind) bool {
	switch k {
	case ItemKindRent, ItemKindCharge, ItemKindPenalty, ItemKindDeposit, ItemKindOther:
		return true
	}
	return false
}

// Invoice is one billing obligation for a tenant/unit/period.
// Invariant: TotalAmount == SubtotalAmount + TaxAmount and SubtotalAmount is
// the sum of item amounts, recomputed on every item/tax mutation.
type Invoice struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_invoices_org_number" json:"org_id"`
	LeaseID       snowflake.ID  `gorm:"not null;index" json:"lease_id"`
	TenantID      snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	UnitID        snowflake.ID  `gorm:"not null;index" json:"unit_id"`
	InvoiceNumber string        `gorm:"type:text;not null;uniqueIndex:ux_invoices_org_number" json:"invoice_number"`
	Status        InvoiceStatus `gorm:"type:text;not null;default:'draft'" json:"status"`

	IssueDate   time.Time `gorm:"not null" json:"issue_date"`
	DueDate     time.Time `gorm:"not null" json:"due_date"`
	PeriodStart time.Time `gorm:"not null" json:"period_start"`
	PeriodEnd   time.Time `gorm:"not null" json:"period_end"`

	SubtotalAmount int64 `gorm:"not null;default:0" json:"subtotal_amount"`
	TaxAmount      int64 `gorm:"not null;default:0" json:"tax_amount"`
	TotalAmount    int64 `gorm:"not null;default:0" json:"total_amount"`

	PaidAt    *time.Time `gorm:"" json:"paid_at,omitempty"`
	Notes     string     `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`

	Items []InvoiceItem `gorm:"-" json:"items,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"org_id"`
	InvoiceID   snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Kind        ItemKind     `gorm:"type:text;not null;default:'other'" json:"kind"`
	Amount      int64        `gorm:"not null" json:"amount"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }
