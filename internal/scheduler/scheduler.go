package scheduler

import (
	"context"
	"time"

	"github.com/repwell/repwell/internal/clock"
	"github.com/repwell/repwell/internal/config"
	payoutdomain "github.com/repwell/repwell/internal/payout/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config    config.Config
	Log       *zap.Logger
	Clock     clock.Clock
	PayoutSvc payoutdomain.Service
}

// Scheduler periodically batches approved commission records into
// payouts. Claiming is conflict-safe, so overlapping runs at worst
// skip a representative until the next tick.
type Scheduler struct {
	cfg       config.SchedulerConfig
	log       *zap.Logger
	clock     clock.Clock
	payoutSvc payoutdomain.Service
}

func New(p Params) *Scheduler {
	return &Scheduler{
		cfg:       p.Config.Scheduler,
		log:       p.Log.Named("payout.scheduler"),
		clock:     p.Clock,
		payoutSvc: p.PayoutSvc,
	}
}

// Run executes payout generation on the configured interval until the
// context is cancelled. The first run fires immediately.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.cfg.RunInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	s.log.Info("payout scheduler started",
		zap.Duration("interval", interval),
		zap.Duration("lookback", s.cfg.Lookback),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("payout scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce generates payouts for the window ending at the start of the
// current day, so only records from fully elapsed days are batched.
func (s *Scheduler) RunOnce(ctx context.Context) {
	periodEnd := startOfDay(s.clock.Now())
	var periodStart time.Time
	if s.cfg.Lookback > 0 {
		periodStart = periodEnd.Add(-s.cfg.Lookback)
	}

	payouts, err := s.payoutSvc.Generate(ctx, payoutdomain.GenerateRequest{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	if err != nil {
		s.log.Error("scheduled payout generation failed",
			zap.Time("period_end", periodEnd),
			zap.Error(err),
		)
		return
	}

	s.log.Info("scheduled payout generation completed",
		zap.Time("period_end", periodEnd),
		zap.Int("payouts", len(payouts)),
	)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
