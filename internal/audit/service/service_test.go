package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/repwell/repwell/internal/audit/domain"
	"github.com/repwell/repwell/internal/audit/repository"
	"github.com/repwell/repwell/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGINT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	)`).Error)
	return db
}

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    openTestDB(t),
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestRecordAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.Record(ctx, domain.Entry{
		ActorID:    "rep-admin",
		Action:     "commission_rule.deactivated",
		TargetType: "commission_rule",
		TargetID:   "424242",
		Metadata:   map[string]any{"reason": "superseded"},
	})
	require.NoError(t, err)

	logs, err := svc.List(ctx, domain.ListFilter{
		TargetType: "commission_rule",
		TargetID:   "424242",
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "rep-admin", logs[0].ActorID)
	assert.Equal(t, "commission_rule.deactivated", logs[0].Action)
}

func TestRecordDefaultsActorToSystem(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, domain.Entry{
		Action:     "commission_payout.generated",
		TargetType: "commission_payout",
		TargetID:   "515151",
	}))

	logs, err := svc.List(ctx, domain.ListFilter{
		TargetType: "commission_payout",
		TargetID:   "515151",
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ActorSystem, logs[0].ActorID)
}

func TestRecordRejectsEmptyAction(t *testing.T) {
	svc := newTestService(t)
	err := svc.Record(context.Background(), domain.Entry{Action: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}
