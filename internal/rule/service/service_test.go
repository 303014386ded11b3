package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/repwell/repwell/internal/audit/domain"
	"github.com/repwell/repwell/internal/clock"
	"github.com/repwell/repwell/internal/rule/domain"
	"github.com/repwell/repwell/internal/rule/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var testSchema = []string{
	`CREATE TABLE IF NOT EXISTS commission_rules (
		id BIGINT PRIMARY KEY,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		organization_id BIGINT,
		top_level_rate NUMERIC(7,4),
		sub_rep_rate NUMERIC(7,4),
		valid_from TIMESTAMP NOT NULL,
		valid_to TIMESTAMP,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS commission_records (
		id BIGINT PRIMARY KEY,
		order_id BIGINT NOT NULL,
		order_item_id BIGINT NOT NULL,
		rep_id BIGINT NOT NULL,
		parent_rep_id BIGINT,
		commission_rule_id BIGINT,
		payout_id BIGINT,
		commission_type TEXT NOT NULL,
		base_amount NUMERIC(12,2) NOT NULL,
		commission_rate NUMERIC(7,4) NOT NULL,
		commission_amount NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		calculation_date TIMESTAMP NOT NULL,
		approved_by BIGINT,
		approved_at TIMESTAMP,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_commission_records_order_item_rep
		ON commission_records (order_item_id, rep_id)`,
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range testSchema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type stubAuditSvc struct {
	entries []auditdomain.Entry
}

func (s *stubAuditSvc) Record(_ context.Context, entry auditdomain.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAuditSvc) List(context.Context, auditdomain.ListFilter) ([]auditdomain.AuditLog, error) {
	return nil, nil
}

func newTestService(t *testing.T, db *gorm.DB, clk clock.Clock) (domain.Service, *stubAuditSvc) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	audit := &stubAuditSvc{}
	svc := New(Params{
		DB:       db,
		Log:      zaptest.NewLogger(t),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		AuditSvc: audit,
	})
	return svc, audit
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCreateRuleValidation(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, clock.New())
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRuleRequest{
		TargetType:   "warehouse",
		TargetID:     "X1",
		TopLevelRate: dec("10"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTargetType)

	_, err = svc.Create(ctx, domain.CreateRuleRequest{
		TargetType:   domain.TargetProduct,
		TargetID:     "   ",
		TopLevelRate: dec("10"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTargetID)

	_, err = svc.Create(ctx, domain.CreateRuleRequest{
		TargetType:   domain.TargetProduct,
		TargetID:     "P-create-1",
		TopLevelRate: dec("120"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRate)

	_, err = svc.Create(ctx, domain.CreateRuleRequest{
		TargetType:   domain.TargetProduct,
		TargetID:     "P-create-1",
		TopLevelRate: dec("-1"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRate)

	_, err = svc.Create(ctx, domain.CreateRuleRequest{
		TargetType: domain.TargetProduct,
		TargetID:   "P-create-1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRate)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, err = svc.Create(ctx, domain.CreateRuleRequest{
		TargetType:   domain.TargetProduct,
		TargetID:     "P-create-1",
		TopLevelRate: dec("10"),
		ValidFrom:    &from,
		ValidTo:      &to,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidValidity)
}

func TestCreateRuleDefaults(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, db, clock.NewFakeClock(now))
	ctx := context.Background()

	rule, err := svc.Create(ctx, domain.CreateRuleRequest{
		TargetType:   domain.TargetCategory,
		TargetID:     "surgical_supplies",
		TopLevelRate: dec("12.5"),
		Description:  "  standard surgical rate  ",
	})
	require.NoError(t, err)
	assert.True(t, rule.ValidFrom.Equal(now))
	assert.Nil(t, rule.ValidTo)
	assert.True(t, rule.IsActive)
	assert.Equal(t, "standard surgical rate", rule.Description)
	assert.True(t, rule.TopLevelRate.Valid)
	assert.False(t, rule.SubRepRate.Valid)

	got, err := svc.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, got.ID)
	assert.True(t, got.TopLevelRate.Decimal.Equal(decimal.RequireFromString("12.5")))
}

func TestUpdateRule(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, clock.New())
	ctx := context.Background()

	rule, err := svc.Create(ctx, domain.CreateRuleRequest{
		TargetType:   domain.TargetProduct,
		TargetID:     "P-update-1",
		TopLevelRate: dec("10"),
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, domain.UpdateRuleRequest{
		ID:           rule.ID,
		TopLevelRate: dec("11"),
	})
	require.NoError(t, err)
	assert.True(t, updated.TopLevelRate.Decimal.Equal(decimal.RequireFromString("11")))

	_, err = svc.Update(ctx, domain.UpdateRuleRequest{ID: snowflake.ID(987654321)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateReferencedRuleRejected(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, clock.New())
	ctx := context.Background()

	rule, err := svc.Create(ctx, domain.CreateRuleRequest{
		TargetType:   domain.TargetProduct,
		TargetID:     "P-referenced-1",
		TopLevelRate: dec("10"),
	})
	require.NoError(t, err)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		`INSERT INTO commission_records (
			id, order_id, order_item_id, rep_id, commission_rule_id,
			commission_type, base_amount, commission_rate, commission_amount,
			status, calculation_date, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.Generate(), node.Generate(), node.Generate(), node.Generate(), rule.ID,
		"product", "100.00", "10", "10.00",
		"pending", now, "", now, now,
	).Error)

	_, err = svc.Update(ctx, domain.UpdateRuleRequest{
		ID:           rule.ID,
		TopLevelRate: dec("12"),
	})
	assert.ErrorIs(t, err, domain.ErrRuleReferenced)

	// Deactivation stays available so a successor rule can take over.
	deactivated, err := svc.Deactivate(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)
}

func TestDeactivateIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, clock.New())
	ctx := context.Background()

	rule, err := svc.Create(ctx, domain.CreateRuleRequest{
		TargetType:   domain.TargetManufacturer,
		TargetID:     "M-deactivate-1",
		TopLevelRate: dec("8"),
	})
	require.NoError(t, err)

	first, err := svc.Deactivate(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, first.IsActive)

	second, err := svc.Deactivate(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, second.IsActive)
}

func TestListRules(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, clock.New())
	ctx := context.Background()

	active, err := svc.Create(ctx, domain.CreateRuleRequest{
		TargetType:   domain.TargetProduct,
		TargetID:     "P-list-1",
		TopLevelRate: dec("10"),
	})
	require.NoError(t, err)

	inactive, err := svc.Create(ctx, domain.CreateRuleRequest{
		TargetType:   domain.TargetProduct,
		TargetID:     "P-list-1",
		TopLevelRate: dec("9"),
	})
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, inactive.ID)
	require.NoError(t, err)

	rules, err := svc.List(ctx, domain.ListRulesRequest{
		TargetType: string(domain.TargetProduct),
		TargetID:   "P-list-1",
	})
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	rules, err = svc.List(ctx, domain.ListRulesRequest{
		TargetType: string(domain.TargetProduct),
		TargetID:   "P-list-1",
		ActiveOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, active.ID, rules[0].ID)

	_, err = svc.List(ctx, domain.ListRulesRequest{TargetType: "warehouse"})
	assert.ErrorIs(t, err, domain.ErrInvalidTargetType)
}
