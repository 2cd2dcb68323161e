package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrProviderNotFound   = errors.New("provider_not_found")
	ErrInvalidConfig      = errors.New("invalid_provider_config")
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrInvalidPayload     = errors.New("invalid_payload")
	ErrMissingReference   = errors.New("missing_reference")
	ErrProviderCallFailed = errors.New("provider_call_failed")
)

// InitiateRequest asks a provider to start collecting a specific amount.
// Reference is the internal intent reference the provider must echo back in
// its callback.
type InitiateRequest struct {
	OrgID     snowflake.ID
	TenantID  snowflake.ID
	Reference string
	Amount    int64
	Currency  string
	Phone     string
	Email     string
	Metadata  map[string]any
}

// InitiateResult carries whatever the rail hands back for client display:
// card gateways redirect, mobile money and bank rails return instructions.
type InitiateResult struct {
	RedirectURL   string
	Instructions  string
	ProviderRef   string
	ProviderExtra map[string]any
}

// VerifyResult is the adapter's judgement of a callback after re-checking
// with the provider where the rail supports it.
type VerifyResult struct {
	Success       bool
	Amount        int64
	TransactionID string
	FailureReason string
	Metadata      map[string]any
}

// PaymentAdapter is the common contract every rail implements. Adapters are
// constructed once at startup with their secrets; they never read the
// environment at call time.
type PaymentAdapter interface {
	Provider() string
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)

	// ExtractReference pulls the internal reference out of a raw callback
	// payload. An empty reference is reported as ErrMissingReference.
	ExtractReference(payload []byte) (string, error)

	Verify(ctx context.Context, reference string, payload []byte) (*VerifyResult, error)
}

// SignatureVerifier is implemented by adapters whose rail signs callbacks.
// Verification runs against the raw body before any business field is parsed.
type SignatureVerifier interface {
	VerifySignature(payload []byte, headers http.Header) error
}

// AdapterConfig carries provider credentials into a factory. Config keys are
// provider-specific; Client bounds every outbound call.
type AdapterConfig struct {
	Provider string
	Config   map[string]any
	Client   *http.Client
	BaseURL  string
}

// AdapterFactory builds one adapter kind from configuration.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}
