// Package domain contains the payment intent model: a provider-facing
// request to collect a specific amount. An intent that completes produces
// exactly one payment, keyed by the intent reference.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrIntentNotFound   = errors.New("payment_intent_not_found")
	ErrNothingToCollect = errors.New("nothing_to_collect")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidCurrency  = errors.New("invalid_currency")
)

// IntentStatus represents intent lifecycle states.
type IntentStatus string

const (
	IntentStatusPending   IntentStatus = "pending"
	IntentStatusCompleted IntentStatus = "completed"
	IntentStatusFailed    IntentStatus = "failed"
	IntentStatusExpired   IntentStatus = "expired"
)

// PaymentIntent tracks one collection attempt from creation through the
// provider callback. Reference is globally unique and doubles as the
// idempotency key for the payment the intent produces.
type PaymentIntent struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID  `gorm:"not null;index" json:"org_id"`
	TenantID  snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	InvoiceID *snowflake.ID `gorm:"index" json:"invoice_id,omitempty"`

	Amount   int64  `gorm:"not null" json:"amount"`
	Currency string `gorm:"type:text;not null" json:"currency"`
	Provider string `gorm:"type:text;not null" json:"provider"`

	Status    IntentStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	Reference string       `gorm:"type:text;not null;uniqueIndex:ux_payment_intents_reference" json:"reference"`

	RedirectURL  string            `gorm:"type:text" json:"redirect_url,omitempty"`
	Instructions string            `gorm:"type:text" json:"instructions,omitempty"`
	ProviderRef  string            `gorm:"type:text" json:"provider_ref,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (PaymentIntent) TableName() string { return "payment_intents" }

// CreateIntentInput starts a collection attempt.
type CreateIntentInput struct {
	OrgID     snowflake.ID
	TenantID  snowflake.ID
	InvoiceID *snowflake.ID
	Amount    int64
	Currency  string
	Provider  string
	Phone     string
	Email     string
}

type ListIntentRequest struct {
	OrgID    snowflake.ID
	TenantID *snowflake.ID
	Status   *IntentStatus
}

type Service interface {
	// CreateAndInitiate validates ownership, persists a pending intent and
	// calls the provider. An adapter failure leaves a failed intent with the
	// error recorded, never a dangling pending row.
	CreateAndInitiate(ctx context.Context, input CreateIntentInput) (*PaymentIntent, error)

	GetByID(ctx context.Context, orgID, id snowflake.ID) (*PaymentIntent, error)
	List(ctx context.Context, req ListIntentRequest) ([]PaymentIntent, error)

	// FindByReference resolves a callback reference. References are globally
	// unique, so no org scope is required at this point; the intent row
	// carries the organization for everything downstream.
	FindByReference(ctx context.Context, reference string) (*PaymentIntent, error)

	MarkCompleted(ctx context.Context, id snowflake.ID, metadata map[string]any) (*PaymentIntent, error)
	MarkFailed(ctx context.Context, id snowflake.ID, reason string) (*PaymentIntent, error)

	// ExpirePending flips pending intents past their expiry to expired.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}
