package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/repwell/repwell/internal/commission/domain"
	"github.com/repwell/repwell/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.CommissionRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commission_records (
			id, order_id, order_item_id, rep_id, parent_rep_id,
			commission_rule_id, payout_id, commission_type,
			base_amount, commission_rate, commission_amount,
			status, calculation_date, approved_by, approved_at,
			notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OrderID,
		record.OrderItemID,
		record.RepID,
		record.ParentRepID,
		record.CommissionRuleID,
		record.PayoutID,
		record.CommissionType,
		record.BaseAmount,
		record.CommissionRate,
		record.CommissionAmount,
		record.Status,
		record.CalculationDate,
		record.ApprovedBy,
		record.ApprovedAt,
		record.Notes,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CommissionRecord, error) {
	var record domain.CommissionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, order_item_id, rep_id, parent_rep_id,
		        commission_rule_id, payout_id, commission_type,
		        base_amount, commission_rate, commission_amount,
		        status, calculation_date, approved_by, approved_at,
		        notes, created_at, updated_at
		 FROM commission_records WHERE id = ?`,
		id,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func applyFilter(stmt *gorm.DB, filter domain.ListFilter) *gorm.DB {
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.RepID != nil {
		stmt = stmt.Where("rep_id = ?", *filter.RepID)
	}
	if filter.From != nil {
		stmt = stmt.Where("calculation_date >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("calculation_date <= ?", *filter.To)
	}
	if filter.Search != "" {
		stmt = stmt.Where("notes LIKE ?", "%"+filter.Search+"%")
	}
	return stmt
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.CommissionRecord, error) {
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.CommissionRecord{}), filter)

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339Nano, cursor.At)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where(
			"calculation_date < ? OR (calculation_date = ? AND id < ?)",
			at, at, id,
		)
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}

	var records []*domain.CommissionRecord
	err := stmt.
		Order("calculation_date desc, id desc").
		Limit(limit + 1).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) Summary(ctx context.Context, db *gorm.DB, filter domain.ListFilter) (domain.Summary, error) {
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.CommissionRecord{}), filter)

	var summary domain.Summary
	err := stmt.Select(
		`COALESCE(SUM(commission_amount), 0) AS total_amount,
		 COALESCE(SUM(CASE WHEN status = 'pending' THEN commission_amount ELSE 0 END), 0) AS pending_amount,
		 COALESCE(SUM(CASE WHEN status = 'approved' THEN commission_amount ELSE 0 END), 0) AS approved_amount,
		 COALESCE(SUM(CASE WHEN status = 'paid' THEN commission_amount ELSE 0 END), 0) AS paid_amount,
		 COUNT(1) AS record_count`,
	).Scan(&summary).Error
	if err != nil {
		return domain.Summary{}, err
	}
	return summary, nil
}

func (r *repo) ApproveConditional(ctx context.Context, db *gorm.DB, id, approverID snowflake.ID, notes string, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE commission_records
		 SET status = ?, approved_by = ?, approved_at = ?,
		     notes = CASE WHEN ? = '' THEN notes ELSE ? END,
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusApproved,
		approverID,
		at,
		notes,
		notes,
		at,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
