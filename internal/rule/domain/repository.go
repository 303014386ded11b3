package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CandidateQuery narrows the rule set before ranking. The store filters
// on the active flag and validity window only; precedence lives in the
// resolver.
type CandidateQuery struct {
	ProductID      string
	Category       string
	ManufacturerID string
	OrganizationID *snowflake.ID
	AsOf           time.Time
}

type ListFilter struct {
	TargetType     TargetType
	TargetID       string
	OrganizationID *snowflake.ID
	ActiveOnly     bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rule *CommissionRule) error
	Update(ctx context.Context, db *gorm.DB, rule *CommissionRule) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CommissionRule, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]CommissionRule, error)
	FindCandidates(ctx context.Context, db *gorm.DB, query CandidateQuery) ([]CommissionRule, error)
	// CountReferences reports how many commission records point at the
	// rule. Referenced rules are append-only: deactivate, never edit.
	CountReferences(ctx context.Context, db *gorm.DB, ruleID snowflake.ID) (int64, error)
}
