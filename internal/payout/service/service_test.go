package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/repwell/repwell/internal/audit/domain"
	"github.com/repwell/repwell/internal/clock"
	commissiondomain "github.com/repwell/repwell/internal/commission/domain"
	commissionrepository "github.com/repwell/repwell/internal/commission/repository"
	"github.com/repwell/repwell/internal/payout/domain"
	"github.com/repwell/repwell/internal/payout/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var testSchema = []string{
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
	`CREATE TABLE IF NOT EXISTS commission_payouts (
		id BIGINT PRIMARY KEY,
		rep_id BIGINT NOT NULL,
		batch_number TEXT NOT NULL,
		period_start TIMESTAMP NOT NULL,
		period_end TIMESTAMP NOT NULL,
		total_amount NUMERIC(12,2) NOT NULL,
		record_count BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'calculated',
		approved_by BIGINT,
		approved_at TIMESTAMP,
		processed_at TIMESTAMP,
		payment_reference TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_commission_payouts_batch_number
		ON commission_payouts (batch_number)`,
}

// stripForUpdate removes row-locking clauses sqlite does not support.
func stripForUpdate(db *gorm.DB) {
	strip := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", strip)
	db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", strip)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	stripForUpdate(db)

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

type testEnv struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	audit *stubAuditSvc
	svc   domain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	audit := &stubAuditSvc{}
	svc := New(Params{
		DB:       db,
		Log:      zaptest.NewLogger(t),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		AuditSvc: audit,
	})

	return &testEnv{db: db, node: node, clock: clk, audit: audit, svc: svc}
}

func (e *testEnv) seedRecord(t *testing.T, repID snowflake.ID, amount string, status commissiondomain.RecordStatus, calculatedAt time.Time) commissiondomain.CommissionRecord {
	t.Helper()
	repo := commissionrepository.Provide()
	record := commissiondomain.CommissionRecord{
		ID:               e.node.Generate(),
		OrderID:          e.node.Generate(),
		OrderItemID:      e.node.Generate(),
		RepID:            repID,
		CommissionType:   commissiondomain.TypeProduct,
		BaseAmount:       decimal.RequireFromString(amount).Mul(decimal.NewFromInt(10)),
		CommissionRate:   decimal.RequireFromString("10"),
		CommissionAmount: decimal.RequireFromString(amount),
		Status:           status,
		CalculationDate:  calculatedAt,
		CreatedAt:        calculatedAt,
		UpdatedAt:        calculatedAt,
	}
	require.NoError(t, repo.Insert(context.Background(), e.db, &record))
	return record
}

func (e *testEnv) period() domain.GenerateRequest {
	now := e.clock.Now()
	return domain.GenerateRequest{
		PeriodStart: now.Add(-30 * 24 * time.Hour),
		PeriodEnd:   now,
	}
}

func TestGenerateForRep(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	repID := e.node.Generate()
	at := e.clock.Now().Add(-24 * time.Hour)

	e.seedRecord(t, repID, "10.00", commissiondomain.StatusApproved, at)
	e.seedRecord(t, repID, "20.00", commissiondomain.StatusApproved, at)
	e.seedRecord(t, repID, "25.00", commissiondomain.StatusApproved, at)
	pending := e.seedRecord(t, repID, "99.00", commissiondomain.StatusPending, at)

	payout, err := e.svc.GenerateForRep(ctx, repID, e.period())
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, repID, payout.RepID)
	assert.Equal(t, domain.StatusCalculated, payout.Status)
	assert.Equal(t, int64(3), payout.RecordCount)
	assert.True(t, payout.TotalAmount.Equal(decimal.RequireFromString("55.00")))
	assert.NotEmpty(t, payout.BatchNumber)

	detail, err := e.svc.Get(ctx, payout.ID)
	require.NoError(t, err)
	require.Len(t, detail.Records, 3)
	for _, record := range detail.Records {
		assert.Equal(t, commissiondomain.StatusPaid, record.Status)
		require.NotNil(t, record.PayoutID)
		assert.Equal(t, payout.ID, *record.PayoutID)
	}

	// The pending record stays untouched.
	var status string
	require.NoError(t, e.db.Raw(
		`SELECT status FROM commission_records WHERE id = ?`, pending.ID,
	).Scan(&status).Error)
	assert.Equal(t, string(commissiondomain.StatusPending), status)

	// Every claimable record is already claimed; a re-run pays nothing.
	again, err := e.svc.GenerateForRep(ctx, repID, e.period())
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestGenerateBatchesPerRep(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	at := e.clock.Now().Add(-24 * time.Hour)

	repA := e.node.Generate()
	repB := e.node.Generate()
	e.seedRecord(t, repA, "10.00", commissiondomain.StatusApproved, at)
	e.seedRecord(t, repA, "15.00", commissiondomain.StatusApproved, at)
	e.seedRecord(t, repB, "40.00", commissiondomain.StatusApproved, at)

	payouts, err := e.svc.Generate(ctx, e.period())
	require.NoError(t, err)
	require.Len(t, payouts, 2)

	byRep := map[snowflake.ID]domain.CommissionPayout{}
	for _, payout := range payouts {
		byRep[payout.RepID] = payout
	}
	assert.True(t, byRep[repA].TotalAmount.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, byRep[repB].TotalAmount.Equal(decimal.RequireFromString("40.00")))
}

func TestGenerateRespectsPeriod(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	repID := e.node.Generate()

	inWindow := e.clock.Now().Add(-24 * time.Hour)
	afterWindow := e.clock.Now().Add(24 * time.Hour)
	e.seedRecord(t, repID, "10.00", commissiondomain.StatusApproved, inWindow)
	e.seedRecord(t, repID, "20.00", commissiondomain.StatusApproved, afterWindow)

	payout, err := e.svc.GenerateForRep(ctx, repID, e.period())
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, int64(1), payout.RecordCount)
	assert.True(t, payout.TotalAmount.Equal(decimal.RequireFromString("10.00")))
}

func TestGenerateOpenEndedStart(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	repID := e.node.Generate()

	// Aged far past any lookback; a zero period start still claims it.
	aged := e.clock.Now().Add(-365 * 24 * time.Hour)
	e.seedRecord(t, repID, "12.00", commissiondomain.StatusApproved, aged)

	payout, err := e.svc.GenerateForRep(ctx, repID, domain.GenerateRequest{PeriodEnd: e.clock.Now()})
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, int64(1), payout.RecordCount)
}

func TestGenerateInvalidPeriod(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	repID := e.node.Generate()

	_, err := e.svc.GenerateForRep(ctx, repID, domain.GenerateRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)

	now := e.clock.Now()
	_, err = e.svc.GenerateForRep(ctx, repID, domain.GenerateRequest{
		PeriodStart: now,
		PeriodEnd:   now.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestApproveAndProcessLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	repID := e.node.Generate()
	e.seedRecord(t, repID, "10.00", commissiondomain.StatusApproved, e.clock.Now().Add(-24*time.Hour))

	payout, err := e.svc.GenerateForRep(ctx, repID, e.period())
	require.NoError(t, err)
	require.NotNil(t, payout)

	// Processing before approval is rejected.
	_, err = e.svc.Process(ctx, domain.ProcessRequest{PayoutID: payout.ID, PaymentReference: "ACH-1"})
	assert.ErrorIs(t, err, domain.ErrNotApproved)

	approverID := e.node.Generate()
	approved, err := e.svc.Approve(ctx, domain.ApproveRequest{PayoutID: payout.ID, ApproverID: approverID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, approverID, *approved.ApprovedBy)

	_, err = e.svc.Approve(ctx, domain.ApproveRequest{PayoutID: payout.ID, ApproverID: approverID})
	assert.ErrorIs(t, err, domain.ErrNotCalculated)

	_, err = e.svc.Process(ctx, domain.ProcessRequest{PayoutID: payout.ID, PaymentReference: "   "})
	assert.ErrorIs(t, err, domain.ErrMissingPaymentReference)

	processed, err := e.svc.Process(ctx, domain.ProcessRequest{PayoutID: payout.ID, PaymentReference: "ACH-2026-0042"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, processed.Status)
	assert.Equal(t, "ACH-2026-0042", processed.PaymentReference)
	assert.NotNil(t, processed.ProcessedAt)

	_, err = e.svc.Process(ctx, domain.ProcessRequest{PayoutID: payout.ID, PaymentReference: "ACH-again"})
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestApproveNotFound(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.svc.Approve(context.Background(), domain.ApproveRequest{
		PayoutID:   e.node.Generate(),
		ApproverID: e.node.Generate(),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPayouts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	repID := e.node.Generate()
	e.seedRecord(t, repID, "10.00", commissiondomain.StatusApproved, e.clock.Now().Add(-24*time.Hour))

	payout, err := e.svc.GenerateForRep(ctx, repID, e.period())
	require.NoError(t, err)
	require.NotNil(t, payout)

	payouts, err := e.svc.List(ctx, domain.ListRequest{RepID: &repID})
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, payout.ID, payouts[0].ID)

	payouts, err = e.svc.List(ctx, domain.ListRequest{RepID: &repID, Status: string(domain.StatusProcessed)})
	require.NoError(t, err)
	assert.Empty(t, payouts)

	_, err = e.svc.List(ctx, domain.ListRequest{Status: "settled"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestClaimRecordsOnlyClaimsUnclaimed(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	repID := e.node.Generate()
	at := e.clock.Now().Add(-24 * time.Hour)

	first := e.seedRecord(t, repID, "10.00", commissiondomain.StatusApproved, at)
	second := e.seedRecord(t, repID, "20.00", commissiondomain.StatusApproved, at)

	// Another payout already owns the first record.
	otherPayoutID := e.node.Generate()
	require.NoError(t, e.db.Exec(
		`UPDATE commission_records SET payout_id = ?, status = ? WHERE id = ?`,
		otherPayoutID, commissiondomain.StatusPaid, first.ID,
	).Error)

	repo := repository.Provide()
	claimed, err := repo.ClaimRecords(ctx, e.db, e.node.Generate(), []snowflake.ID{first.ID, second.ID}, e.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), claimed)

	// The earlier claim is untouched.
	var payoutID snowflake.ID
	require.NoError(t, e.db.Raw(
		`SELECT payout_id FROM commission_records WHERE id = ?`, first.ID,
	).Scan(&payoutID).Error)
	assert.Equal(t, otherPayoutID, payoutID)
}

// lostClaimRepo simulates a concurrent run winning one of the selected
// records between the locking select and the claim update.
type lostClaimRepo struct {
	domain.Repository
	interloperID snowflake.ID
	fired        bool
}

func (r *lostClaimRepo) ClaimableForRep(ctx context.Context, tx *gorm.DB, repID snowflake.ID, periodStart, periodEnd time.Time) ([]commissiondomain.CommissionRecord, error) {
	records, err := r.Repository.ClaimableForRep(ctx, tx, repID, periodStart, periodEnd)
	if err != nil || r.fired || len(records) == 0 {
		return records, err
	}
	r.fired = true
	err = tx.Exec(
		`UPDATE commission_records SET payout_id = ?, status = ? WHERE id = ?`,
		r.interloperID, commissiondomain.StatusPaid, records[0].ID,
	).Error
	return records, err
}

func TestGenerateForRepRollsBackOnLostClaim(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	repID := e.node.Generate()
	at := e.clock.Now().Add(-24 * time.Hour)

	e.seedRecord(t, repID, "10.00", commissiondomain.StatusApproved, at)
	e.seedRecord(t, repID, "20.00", commissiondomain.StatusApproved, at)

	repo := &lostClaimRepo{Repository: repository.Provide(), interloperID: e.node.Generate()}
	svc := New(Params{
		DB:       e.db,
		Log:      zaptest.NewLogger(t),
		GenID:    e.node,
		Clock:    e.clock,
		Repo:     repo,
		AuditSvc: e.audit,
	})

	_, err := svc.GenerateForRep(ctx, repID, e.period())
	assert.ErrorIs(t, err, domain.ErrClaimConflict)

	// A short claim rolls the whole payout back rather than paying a
	// partial batch.
	var payoutCount int64
	require.NoError(t, e.db.Raw(
		`SELECT COUNT(*) FROM commission_payouts WHERE rep_id = ?`, repID,
	).Scan(&payoutCount).Error)
	assert.Zero(t, payoutCount)

	var unclaimed int64
	require.NoError(t, e.db.Raw(
		`SELECT COUNT(*) FROM commission_records WHERE rep_id = ? AND status = ? AND payout_id IS NULL`,
		repID, commissiondomain.StatusApproved,
	).Scan(&unclaimed).Error)
	assert.Equal(t, int64(2), unclaimed)

	// Nothing was generated, so nothing was audited.
	for _, entry := range e.audit.entries {
		assert.NotEqual(t, "commission_payout.generated", entry.Action)
	}

	// The next run claims the batch cleanly.
	payout, err := svc.GenerateForRep(ctx, repID, e.period())
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, int64(2), payout.RecordCount)
	assert.True(t, payout.TotalAmount.Equal(decimal.RequireFromString("30.00")))
}

func TestGenerateAudits(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	repID := e.node.Generate()
	e.seedRecord(t, repID, "10.00", commissiondomain.StatusApproved, e.clock.Now().Add(-24*time.Hour))

	_, err := e.svc.GenerateForRep(ctx, repID, e.period())
	require.NoError(t, err)

	require.NotEmpty(t, e.audit.entries)
	assert.Equal(t, "commission_payout.generated", e.audit.entries[len(e.audit.entries)-1].Action)
}
