// Package webhook reconciles asynchronous provider callbacks into the
// payment and invoice ledgers. Deliveries arrive concurrent, unordered and
// at-least-once; the reference uniqueness constraint in the payment ledger
// is what keeps replay safe.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/smallbiznis/tenancy/internal/clock"
	"github.com/smallbiznis/tenancy/internal/config"
	"github.com/smallbiznis/tenancy/internal/notification"
	obsmetrics "github.com/smallbiznis/tenancy/internal/observability/metrics"
	"github.com/smallbiznis/tenancy/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
	intentdomain "github.com/smallbiznis/tenancy/internal/paymentintent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Ack is the acknowledgment body returned to the provider.
type Ack struct {
	Status    string `json:"status"`
	IntentID  string `json:"intent_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

const (
	AckOK     = "ok"
	AckFailed = "failed"
)

type Service interface {
	// Reconcile processes one callback. A verification failure returns a
	// failed Ack with a nil error: the reference is permanently failed and
	// the provider must not retry it forever.
	Reconcile(ctx context.Context, provider string, payload []byte, headers http.Header) (*Ack, error)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Adapters   *adapters.Set
	IntentSvc  intentdomain.Service
	PaymentSvc paymentdomain.Service
	Notifier   notification.Notifier
	Clock      clock.Clock
	Cfg        config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	log         *zap.Logger
	adapters    *adapters.Set
	intentSvc   intentdomain.Service
	paymentSvc  paymentdomain.Service
	notifier    notification.Notifier
	clock       clock.Clock
	cfg         config.Config
	receiptBase string
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) Service {
	return &service{
		log:         p.Log.Named("payment.webhook"),
		adapters:    p.Adapters,
		intentSvc:   p.IntentSvc,
		paymentSvc:  p.PaymentSvc,
		notifier:    p.Notifier,
		clock:       p.Clock,
		cfg:         p.Cfg,
		receiptBase: strings.TrimRight(p.Cfg.ReceiptBaseURL, "/"),
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *service) Reconcile(ctx context.Context, provider string, payload []byte, headers http.Header) (*Ack, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	adapter, err := s.adapters.Get(provider)
	if err != nil {
		s.record(provider, "unknown_provider")
		return nil, err
	}

	// Signature first, before any business field is parsed.
	if verifier, ok := adapter.(paymentdomain.SignatureVerifier); ok {
		if err := verifier.VerifySignature(payload, headers); err != nil {
			s.record(provider, "signature_rejected")
			return nil, err
		}
	}

	if !json.Valid(payload) {
		s.record(provider, "invalid_payload")
		return nil, paymentdomain.ErrInvalidPayload
	}

	reference, err := adapter.ExtractReference(payload)
	if err != nil {
		s.record(provider, "missing_reference")
		return nil, err
	}

	intent, err := s.intentSvc.FindByReference(ctx, reference)
	if err != nil {
		// The provider retries callbacks on its own schedule; nothing to
		// persist for a reference this system never issued.
		s.record(provider, "unknown_reference")
		return nil, err
	}

	callCtx := ctx
	if s.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		defer cancel()
	}
	result, err := adapter.Verify(callCtx, reference, payload)
	if err != nil {
		s.record(provider, "verify_error")
		if s.obsMetrics != nil {
			s.obsMetrics.RecordProviderCallError(provider, "verify")
		}
		return nil, err
	}

	if !result.Success {
		if _, err := s.intentSvc.MarkFailed(ctx, intent.ID, result.FailureReason); err != nil {
			return nil, err
		}
		s.record(provider, "verification_failed")
		s.notifier.PaymentFailed(ctx, notification.PaymentNotice{
			OrgID:     intent.OrgID,
			TenantID:  intent.TenantID,
			InvoiceID: intent.InvoiceID,
			Amount:    intent.Amount,
			Currency:  intent.Currency,
			Provider:  provider,
			Reference: intent.Reference,
			Reason:    result.FailureReason,
		})
		return &Ack{Status: AckFailed, IntentID: intent.ID.String()}, nil
	}

	amount := result.Amount
	if amount <= 0 {
		amount = intent.Amount
	}
	payment, err := s.paymentSvc.Create(ctx, paymentdomain.CreatePaymentInput{
		OrgID:           intent.OrgID,
		TenantID:        intent.TenantID,
		InvoiceID:       intent.InvoiceID,
		Amount:          amount,
		Method:          methodForProvider(provider),
		PaymentDate:     s.clock.Now(),
		ReferenceNumber: intent.Reference,
		Status:          paymentdomain.PaymentStatusCompleted,
		ProviderTxnID:   result.TransactionID,
		Metadata:        result.Metadata,
	})
	if err != nil {
		if errors.Is(err, paymentdomain.ErrDuplicateReference) {
			// Replayed delivery for an already reconciled reference.
			if _, markErr := s.intentSvc.MarkCompleted(ctx, intent.ID, nil); markErr != nil {
				s.log.Warn("failed to mark replayed intent completed",
					zap.String("reference", intent.Reference),
					zap.Error(markErr),
				)
			}
			s.record(provider, "duplicate")
			return &Ack{Status: AckOK, IntentID: intent.ID.String()}, nil
		}
		return nil, err
	}

	metadata := map[string]any{"transaction_id": result.TransactionID}
	if _, err := s.intentSvc.MarkCompleted(ctx, intent.ID, metadata); err != nil {
		// The payment is durably committed; a stale intent row is recoverable
		// and must not fail the acknowledgment.
		s.log.Error("payment committed but intent not finalized",
			zap.String("reference", intent.Reference),
			zap.Error(err),
		)
	}

	s.record(provider, "ok")
	s.afterCommit(ctx, provider, intent, payment)

	return &Ack{
		Status:    AckOK,
		IntentID:  intent.ID.String(),
		PaymentID: payment.ID.String(),
	}, nil
}

// afterCommit runs side effects that must never roll back the payment.
func (s *service) afterCommit(ctx context.Context, provider string, intent *intentdomain.PaymentIntent, payment *paymentdomain.Payment) {
	if s.receiptBase != "" {
		receiptURL := fmt.Sprintf("%s/receipts/%s", s.receiptBase, uuid.NewString())
		if _, err := s.paymentSvc.Update(ctx, payment.OrgID, payment.ID, paymentdomain.UpdatePaymentInput{
			ReceiptURL: &receiptURL,
		}); err != nil {
			s.log.Warn("failed to attach receipt url",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(err),
			)
		} else {
			payment.ReceiptURL = receiptURL
		}
	}

	s.notifier.PaymentCompleted(ctx, notification.PaymentNotice{
		OrgID:     intent.OrgID,
		TenantID:  intent.TenantID,
		InvoiceID: intent.InvoiceID,
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Currency:  intent.Currency,
		Provider:  provider,
		Reference: intent.Reference,
	})
}

func (s *service) record(provider, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookEvent(provider, outcome)
	}
}

func methodForProvider(provider string) paymentdomain.Method {
	switch provider {
	case "mpesa":
		return paymentdomain.MethodMpesa
	case "paystack":
		return paymentdomain.MethodPaystack
	case "bank":
		return paymentdomain.MethodBankTransfer
	}
	return paymentdomain.MethodOther
}
