package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/repwell/repwell/internal/rule/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rule *domain.CommissionRule) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commission_rules (
			id, target_type, target_id, organization_id,
			top_level_rate, sub_rep_rate, valid_from, valid_to,
			is_active, description, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.TargetType,
		rule.TargetID,
		rule.OrganizationID,
		rule.TopLevelRate,
		rule.SubRepRate,
		rule.ValidFrom,
		rule.ValidTo,
		rule.IsActive,
		rule.Description,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rule *domain.CommissionRule) error {
	return db.WithContext(ctx).Exec(
		`UPDATE commission_rules
		 SET top_level_rate = ?, sub_rep_rate = ?, valid_to = ?,
		     is_active = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		rule.TopLevelRate,
		rule.SubRepRate,
		rule.ValidTo,
		rule.IsActive,
		rule.Description,
		rule.UpdatedAt,
		rule.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CommissionRule, error) {
	var rule domain.CommissionRule
	err := db.WithContext(ctx).Raw(
		`SELECT id, target_type, target_id, organization_id,
		        top_level_rate, sub_rep_rate, valid_from, valid_to,
		        is_active, description, created_at, updated_at
		 FROM commission_rules WHERE id = ?`,
		id,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.CommissionRule, error) {
	stmt := db.WithContext(ctx).Model(&domain.CommissionRule{})
	if filter.TargetType != "" {
		stmt = stmt.Where("target_type = ?", filter.TargetType)
	}
	if filter.TargetID != "" {
		stmt = stmt.Where("target_id = ?", filter.TargetID)
	}
	if filter.OrganizationID != nil {
		stmt = stmt.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}

	var rules []domain.CommissionRule
	err := stmt.
		Order("target_type asc, target_id asc, valid_from desc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// FindCandidates returns every active, time-valid rule that could govern
// the product for the representative's scope. Ranking is the resolver's
// job; this is predicate filtering only.
func (r *repo) FindCandidates(ctx context.Context, db *gorm.DB, query domain.CandidateQuery) ([]domain.CommissionRule, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.CommissionRule{}).
		Where("is_active = ?", true).
		Where("valid_from <= ?", query.AsOf).
		Where("valid_to IS NULL OR valid_to >= ?", query.AsOf).
		Where(
			db.Where("target_type = ? AND target_id = ?", domain.TargetProduct, query.ProductID).
				Or("target_type = ? AND target_id = ?", domain.TargetCategory, query.Category).
				Or("target_type = ? AND target_id = ?", domain.TargetManufacturer, query.ManufacturerID),
		)
	if query.OrganizationID != nil {
		stmt = stmt.Where("organization_id IS NULL OR organization_id = ?", *query.OrganizationID)
	} else {
		stmt = stmt.Where("organization_id IS NULL")
	}

	var rules []domain.CommissionRule
	if err := stmt.Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) CountReferences(ctx context.Context, db *gorm.DB, ruleID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM commission_records WHERE commission_rule_id = ?`,
		ruleID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
