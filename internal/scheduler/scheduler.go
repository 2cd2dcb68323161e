// Package scheduler runs the periodic sweeps: sent invoices past their due
// date become overdue, pending intents past their expiry become expired.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/tenancy/internal/clock"
	"github.com/smallbiznis/tenancy/internal/config"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	intentdomain "github.com/smallbiznis/tenancy/internal/paymentintent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultInterval = time.Minute

type Params struct {
	fx.In

	Log        *zap.Logger
	InvoiceSvc invoicedomain.Service
	IntentSvc  intentdomain.Service
	Clock      clock.Clock
	Cfg        config.Config
}

type Scheduler struct {
	log        *zap.Logger
	invoiceSvc invoicedomain.Service
	intentSvc  intentdomain.Service
	clock      clock.Clock
	interval   time.Duration
}

func New(p Params) *Scheduler {
	interval := p.Cfg.SchedulerInterval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		invoiceSvc: p.InvoiceSvc,
		intentSvc:  p.IntentSvc,
		clock:      p.Clock,
		interval:   interval,
	}
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	now := s.clock.Now()
	var err error

	overdue, jobErr := s.invoiceSvc.MarkOverdue(ctx, now)
	if jobErr != nil {
		err = errors.Join(err, jobErr)
	} else if overdue > 0 {
		s.log.Info("marked invoices overdue", zap.Int64("count", overdue))
	}

	expired, jobErr := s.intentSvc.ExpirePending(ctx, now)
	if jobErr != nil {
		err = errors.Join(err, jobErr)
	} else if expired > 0 {
		s.log.Info("expired payment intents", zap.Int64("count", expired))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
