// Package notification is a fire-and-forget consumer of payment outcomes.
// Send failures are logged and never propagate into the billing core.
package notification

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// PaymentNotice describes a finished collection attempt.
type PaymentNotice struct {
	OrgID     snowflake.ID
	TenantID  snowflake.ID
	InvoiceID *snowflake.ID
	PaymentID snowflake.ID
	Amount    int64
	Currency  string
	Provider  string
	Reference string
	Reason    string
}

type Notifier interface {
	PaymentCompleted(ctx context.Context, notice PaymentNotice)
	PaymentFailed(ctx context.Context, notice PaymentNotice)
}

type logNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) Notifier {
	return &logNotifier{log: log.Named("notification")}
}

func (n *logNotifier) PaymentCompleted(ctx context.Context, notice PaymentNotice) {
	n.log.Info("payment completed",
		zap.String("org_id", notice.OrgID.String()),
		zap.String("tenant_id", notice.TenantID.String()),
		zap.String("payment_id", notice.PaymentID.String()),
		zap.Int64("amount", notice.Amount),
		zap.String("currency", notice.Currency),
		zap.String("provider", notice.Provider),
		zap.String("reference", notice.Reference),
	)
}

func (n *logNotifier) PaymentFailed(ctx context.Context, notice PaymentNotice) {
	n.log.Info("payment failed",
		zap.String("org_id", notice.OrgID.String()),
		zap.String("tenant_id", notice.TenantID.String()),
		zap.String("provider", notice.Provider),
		zap.String("reference", notice.Reference),
		zap.String("reason", notice.Reason),
	)
}

var Module = fx.Module("notification",
	fx.Provide(NewLogNotifier),
)
