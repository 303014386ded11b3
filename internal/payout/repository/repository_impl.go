package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	commissiondomain "github.com/repwell/repwell/internal/commission/domain"
	"github.com/repwell/repwell/internal/payout/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payout *domain.CommissionPayout) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commission_payouts (
			id, rep_id, batch_number, period_start, period_end,
			total_amount, record_count, status, approved_by, approved_at,
			processed_at, payment_reference, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payout.ID,
		payout.RepID,
		payout.BatchNumber,
		payout.PeriodStart,
		payout.PeriodEnd,
		payout.TotalAmount,
		payout.RecordCount,
		payout.Status,
		payout.ApprovedBy,
		payout.ApprovedAt,
		payout.ProcessedAt,
		payout.PaymentReference,
		payout.Notes,
		payout.CreatedAt,
		payout.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CommissionPayout, error) {
	var payout domain.CommissionPayout
	err := db.WithContext(ctx).Raw(
		`SELECT id, rep_id, batch_number, period_start, period_end,
		        total_amount, record_count, status, approved_by, approved_at,
		        processed_at, payment_reference, notes, created_at, updated_at
		 FROM commission_payouts WHERE id = ?`,
		id,
	).Scan(&payout).Error
	if err != nil {
		return nil, err
	}
	if payout.ID == 0 {
		return nil, nil
	}
	return &payout, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.CommissionPayout, error) {
	stmt := db.WithContext(ctx).Model(&domain.CommissionPayout{})
	if filter.RepID != nil {
		stmt = stmt.Where("rep_id = ?", *filter.RepID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		stmt = stmt.Where("period_end >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("period_start <= ?", *filter.To)
	}

	var payouts []domain.CommissionPayout
	err := stmt.
		Order("created_at desc, id desc").
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repo) RepsWithClaimable(ctx context.Context, db *gorm.DB, periodStart, periodEnd time.Time) ([]snowflake.ID, error) {
	query := `SELECT DISTINCT rep_id
		 FROM commission_records
		 WHERE status = ? AND payout_id IS NULL AND calculation_date <= ?`
	args := []any{commissiondomain.StatusApproved, periodEnd}
	if !periodStart.IsZero() {
		query += ` AND calculation_date >= ?`
		args = append(args, periodStart)
	}
	query += ` ORDER BY rep_id`

	var repIDs []snowflake.ID
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&repIDs).Error; err != nil {
		return nil, err
	}
	return repIDs, nil
}

func (r *repo) ClaimableForRep(ctx context.Context, tx *gorm.DB, repID snowflake.ID, periodStart, periodEnd time.Time) ([]commissiondomain.CommissionRecord, error) {
	query := `SELECT id, order_id, order_item_id, rep_id, parent_rep_id,
		        commission_rule_id, payout_id, commission_type,
		        base_amount, commission_rate, commission_amount,
		        status, calculation_date, approved_by, approved_at,
		        notes, created_at, updated_at
		 FROM commission_records
		 WHERE rep_id = ? AND status = ? AND payout_id IS NULL
		   AND calculation_date <= ?`
	args := []any{repID, commissiondomain.StatusApproved, periodEnd}
	if !periodStart.IsZero() {
		query += ` AND calculation_date >= ?`
		args = append(args, periodStart)
	}
	query += `
		 ORDER BY calculation_date ASC, id ASC
		 FOR UPDATE SKIP LOCKED`

	var records []commissiondomain.CommissionRecord
	if err := tx.WithContext(ctx).Raw(query, args...).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) ClaimRecords(ctx context.Context, tx *gorm.DB, payoutID snowflake.ID, recordIDs []snowflake.ID, at time.Time) (int64, error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}
	result := tx.WithContext(ctx).Exec(
		`UPDATE commission_records
		 SET payout_id = ?, status = ?, updated_at = ?
		 WHERE id IN ? AND status = ? AND payout_id IS NULL`,
		payoutID,
		commissiondomain.StatusPaid,
		at,
		recordIDs,
		commissiondomain.StatusApproved,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) RecordsForPayout(ctx context.Context, db *gorm.DB, payoutID snowflake.ID) ([]commissiondomain.CommissionRecord, error) {
	var records []commissiondomain.CommissionRecord
	err := db.WithContext(ctx).
		Model(&commissiondomain.CommissionRecord{}).
		Where("payout_id = ?", payoutID).
		Order("calculation_date asc, id asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) ApproveConditional(ctx context.Context, db *gorm.DB, id, approverID snowflake.ID, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE commission_payouts
		 SET status = ?, approved_by = ?, approved_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusApproved,
		approverID,
		at,
		at,
		id,
		domain.StatusCalculated,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) ProcessConditional(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentReference string, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE commission_payouts
		 SET status = ?, processed_at = ?, payment_reference = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusProcessed,
		at,
		paymentReference,
		at,
		id,
		domain.StatusApproved,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
