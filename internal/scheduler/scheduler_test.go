package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/repwell/repwell/internal/clock"
	"github.com/repwell/repwell/internal/config"
	payoutdomain "github.com/repwell/repwell/internal/payout/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubPayoutSvc struct {
	requests []payoutdomain.GenerateRequest
}

func (s *stubPayoutSvc) Generate(_ context.Context, req payoutdomain.GenerateRequest) ([]payoutdomain.CommissionPayout, error) {
	s.requests = append(s.requests, req)
	return nil, nil
}

func (s *stubPayoutSvc) GenerateForRep(context.Context, snowflake.ID, payoutdomain.GenerateRequest) (*payoutdomain.CommissionPayout, error) {
	return nil, nil
}

func (s *stubPayoutSvc) Approve(context.Context, payoutdomain.ApproveRequest) (payoutdomain.CommissionPayout, error) {
	return payoutdomain.CommissionPayout{}, nil
}

func (s *stubPayoutSvc) Process(context.Context, payoutdomain.ProcessRequest) (payoutdomain.CommissionPayout, error) {
	return payoutdomain.CommissionPayout{}, nil
}

func (s *stubPayoutSvc) Get(context.Context, snowflake.ID) (payoutdomain.Detail, error) {
	return payoutdomain.Detail{}, nil
}

func (s *stubPayoutSvc) List(context.Context, payoutdomain.ListRequest) ([]payoutdomain.CommissionPayout, error) {
	return nil, nil
}

func newTestScheduler(t *testing.T, clk clock.Clock, schedCfg config.SchedulerConfig) (*Scheduler, *stubPayoutSvc) {
	t.Helper()
	stub := &stubPayoutSvc{}
	s := New(Params{
		Config:    config.Config{Scheduler: schedCfg},
		Log:       zaptest.NewLogger(t),
		Clock:     clk,
		PayoutSvc: stub,
	})
	return s, stub
}

func TestRunOnceWindowEndsAtStartOfDay(t *testing.T) {
	now := time.Date(2026, 8, 15, 14, 30, 0, 0, time.UTC)
	s, stub := newTestScheduler(t, clock.NewFakeClock(now), config.SchedulerConfig{
		Lookback: 7 * 24 * time.Hour,
	})

	s.RunOnce(context.Background())

	require.Len(t, stub.requests, 1)
	req := stub.requests[0]
	assert.True(t, req.PeriodEnd.Equal(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)))
	assert.True(t, req.PeriodStart.Equal(time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)))
}

func TestRunOnceZeroLookbackIsOpenEnded(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 1, 0, time.UTC)
	s, stub := newTestScheduler(t, clock.NewFakeClock(now), config.SchedulerConfig{})

	s.RunOnce(context.Background())

	require.Len(t, stub.requests, 1)
	assert.True(t, stub.requests[0].PeriodStart.IsZero())
	assert.True(t, stub.requests[0].PeriodEnd.Equal(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s, stub := newTestScheduler(t, clock.New(), config.SchedulerConfig{
		RunInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}

	// The immediate first run fired before shutdown.
	assert.NotEmpty(t, stub.requests)
}
