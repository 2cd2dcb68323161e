package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tenancy/internal/clock"
	"github.com/smallbiznis/tenancy/internal/config"
	directorydomain "github.com/smallbiznis/tenancy/internal/directory/domain"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/tenancy/internal/observability/metrics"
	"github.com/smallbiznis/tenancy/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
	intentdomain "github.com/smallbiznis/tenancy/internal/paymentintent/domain"
	"github.com/smallbiznis/tenancy/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Directory  directorydomain.Store
	InvoiceSvc invoicedomain.Service
	Adapters   *adapters.Set
	Clock      clock.Clock
	Cfg        config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	directory  directorydomain.Store
	invoiceSvc invoicedomain.Service
	adapters   *adapters.Set
	clock      clock.Clock
	ttl        time.Duration
	timeout    time.Duration
	currency   string
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) intentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("paymentintent.service"),
		genID:      p.GenID,
		directory:  p.Directory,
		invoiceSvc: p.InvoiceSvc,
		adapters:   p.Adapters,
		clock:      p.Clock,
		ttl:        p.Cfg.IntentTTL,
		timeout:    p.Cfg.ProviderTimeout,
		currency:   p.Cfg.DefaultCurrency,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateAndInitiate(ctx context.Context, input intentdomain.CreateIntentInput) (*intentdomain.PaymentIntent, error) {
	if input.Amount <= 0 {
		return nil, intentdomain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.currency
	}
	if currency == "" {
		return nil, intentdomain.ErrInvalidCurrency
	}

	adapter, err := s.adapters.Get(input.Provider)
	if err != nil {
		return nil, err
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
		// Nothing to collect on an already settled invoice; reject before any
		// provider call.
		if invoice.Status == invoicedomain.InvoiceStatusPaid {
			return nil, intentdomain.ErrNothingToCollect
		}
	}

	now := s.clock.Now()
	intent := &intentdomain.PaymentIntent{
		ID:        s.genID.Generate(),
		OrgID:     input.OrgID,
		TenantID:  input.TenantID,
		InvoiceID: input.InvoiceID,
		Amount:    input.Amount,
		Currency:  currency,
		Provider:  strings.ToLower(strings.TrimSpace(input.Provider)),
		Status:    intentdomain.IntentStatusPending,
		Reference: "PMT-" + uuid.NewString(),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(intent).Error; err != nil {
		return nil, err
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	result, err := adapter.Initiate(callCtx, paymentdomain.InitiateRequest{
		OrgID:     input.OrgID,
		TenantID:  input.TenantID,
		Reference: intent.Reference,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Phone:     input.Phone,
		Email:     input.Email,
	})
	if err != nil {
		// A timed-out or rejected initiate degrades to a failed intent, never
		// a dangling pending one.
		s.log.Warn("provider initiate failed",
			zap.String("provider", intent.Provider),
			zap.String("reference", intent.Reference),
			zap.Error(err),
		)
		if s.obsMetrics != nil {
			s.obsMetrics.RecordProviderCallError(intent.Provider, "initiate")
		}
		intent.Status = intentdomain.IntentStatusFailed
		intent.Metadata = datatypes.JSONMap{"error": err.Error()}
		intent.UpdatedAt = s.clock.Now()
		if saveErr := s.db.WithContext(ctx).Save(intent).Error; saveErr != nil {
			s.log.Error("failed to persist failed intent", zap.Error(saveErr))
		}
		if errors.Is(err, paymentdomain.ErrProviderCallFailed) {
			return intent, err
		}
		return intent, fmt.Errorf("%w: %v", paymentdomain.ErrProviderCallFailed, err)
	}

	intent.RedirectURL = result.RedirectURL
	intent.Instructions = result.Instructions
	intent.ProviderRef = result.ProviderRef
	if len(result.ProviderExtra) > 0 {
		intent.Metadata = datatypes.JSONMap(result.ProviderExtra)
	}
	intent.UpdatedAt = s.clock.Now()
	if err := s.db.WithContext(ctx).Save(intent).Error; err != nil {
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordIntent(intent.Provider, string(intent.Status))
	}
	return intent, nil
}

func (s *Service) GetByID(ctx context.Context, orgID, id snowflake.ID) (*intentdomain.PaymentIntent, error) {
	var intent intentdomain.PaymentIntent
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, intentdomain.ErrIntentNotFound
		}
		return nil, err
	}
	return &intent, nil
}

func (s *Service) List(ctx context.Context, req intentdomain.ListIntentRequest) ([]intentdomain.PaymentIntent, error) {
	query := s.db.WithContext(ctx).Where("org_id = ?", req.OrgID)
	if req.TenantID != nil {
		query = query.Where("tenant_id = ?", *req.TenantID)
	}
	if req.Status != nil {
		query = query.Where("status = ?", *req.Status)
	}

	var intents []intentdomain.PaymentIntent
	if err := query.Order("created_at DESC").Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}

func (s *Service) FindByReference(ctx context.Context, reference string) (*intentdomain.PaymentIntent, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, intentdomain.ErrIntentNotFound
	}
	var intent intentdomain.PaymentIntent
	err := s.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, intentdomain.ErrIntentNotFound
		}
		return nil, err
	}
	return &intent, nil
}

// MarkCompleted flips the intent to completed. Expiry is deliberately not
// checked: a late callback that proves payment succeeded still settles.
func (s *Service) MarkCompleted(ctx context.Context, id snowflake.ID, metadata map[string]any) (*intentdomain.PaymentIntent, error) {
	return s.finalize(ctx, id, func(intent *intentdomain.PaymentIntent) {
		intent.Status = intentdomain.IntentStatusCompleted
		if len(metadata) > 0 {
			if intent.Metadata == nil {
				intent.Metadata = datatypes.JSONMap{}
			}
			for key, value := range metadata {
				intent.Metadata[key] = value
			}
		}
	})
}

func (s *Service) MarkFailed(ctx context.Context, id snowflake.ID, reason string) (*intentdomain.PaymentIntent, error) {
	return s.finalize(ctx, id, func(intent *intentdomain.PaymentIntent) {
		if intent.Status == intentdomain.IntentStatusCompleted {
			return
		}
		intent.Status = intentdomain.IntentStatusFailed
		if intent.Metadata == nil {
			intent.Metadata = datatypes.JSONMap{}
		}
		intent.Metadata["error"] = reason
	})
}

func (s *Service) finalize(ctx context.Context, id snowflake.ID, apply func(*intentdomain.PaymentIntent)) (*intentdomain.PaymentIntent, error) {
	var updated *intentdomain.PaymentIntent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var intent intentdomain.PaymentIntent
		err := db.ForUpdate(tx.WithContext(ctx)).
			Where("id = ?", id).
			First(&intent).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return intentdomain.ErrIntentNotFound
			}
			return err
		}
		apply(&intent)
		intent.UpdatedAt = s.clock.Now()
		if err := tx.Save(&intent).Error; err != nil {
			return err
		}
		updated = &intent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE payment_intents
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND expires_at < ?`,
		intentdomain.IntentStatusExpired,
		now,
		intentdomain.IntentStatusPending,
		now,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
