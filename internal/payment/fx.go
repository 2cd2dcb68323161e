package payment

import (
	"net/http"

	"github.com/smallbiznis/tenancy/internal/config"
	"github.com/smallbiznis/tenancy/internal/payment/adapters"
	"github.com/smallbiznis/tenancy/internal/payment/adapters/bank"
	"github.com/smallbiznis/tenancy/internal/payment/adapters/mpesa"
	"github.com/smallbiznis/tenancy/internal/payment/adapters/paystack"
	"github.com/smallbiznis/tenancy/internal/payment/domain"
	"github.com/smallbiznis/tenancy/internal/payment/repository"
	"github.com/smallbiznis/tenancy/internal/payment/service"
	"github.com/smallbiznis/tenancy/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment",
	fx.Provide(repository.Provide),
	fx.Provide(NewAdapterSet),
	fx.Provide(service.NewService),
	fx.Provide(webhook.NewService),
)

// NewAdapterSet builds one adapter per configured rail. A rail with missing
// credentials is skipped with a warning so a dev environment can run with a
// partial provider set; an unknown provider id at request time is still a
// hard error from the Set.
func NewAdapterSet(cfg config.Config, log *zap.Logger) *adapters.Set {
	log = log.Named("payment.adapters")
	registry := adapters.NewRegistry(
		mpesa.NewFactory(),
		paystack.NewFactory(),
		bank.NewFactory(),
	)
	client := &http.Client{Timeout: cfg.ProviderTimeout}

	configs := map[string]domain.AdapterConfig{
		"mpesa": {
			Provider: "mpesa",
			Client:   client,
			BaseURL:  cfg.Mpesa.BaseURL,
			Config: map[string]any{
				"consumer_key":    cfg.Mpesa.ConsumerKey,
				"consumer_secret": cfg.Mpesa.ConsumerSecret,
				"short_code":      cfg.Mpesa.ShortCode,
			},
		},
		"paystack": {
			Provider: "paystack",
			Client:   client,
			BaseURL:  cfg.Paystack.BaseURL,
			Config: map[string]any{
				"secret_key": cfg.Paystack.SecretKey,
			},
		},
		"bank": {
			Provider: "bank",
			Config: map[string]any{
				"account_name":   cfg.Bank.AccountName,
				"account_number": cfg.Bank.AccountNumber,
				"bank_name":      cfg.Bank.BankName,
			},
		},
	}

	built := make([]domain.PaymentAdapter, 0, len(configs))
	for provider, adapterCfg := range configs {
		adapter, err := registry.NewAdapter(provider, adapterCfg)
		if err != nil {
			log.Warn("payment rail not configured, skipping",
				zap.String("provider", provider),
				zap.Error(err),
			)
			continue
		}
		built = append(built, adapter)
	}

	set := adapters.NewSet(built...)
	log.Info("payment rails configured", zap.Strings("providers", set.Providers()))
	return set
}
