package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Product is the opaque catalog input supplied by order management.
type Product struct {
	ID             string
	Category       string
	ManufacturerID string
}

// Representative is the opaque payee input supplied by order management.
// A sub-representative carries at most one parent hop.
type Representative struct {
	ID             snowflake.ID
	Type           RepType
	ParentRepID    *snowflake.ID
	OrganizationID *snowflake.ID
}

// MatchTier classifies which precedence tier produced a resolution.
// MatchNone marks "zero because no rule" distinctly from "zero because
// the rule says zero".
type MatchTier string

const (
	MatchProduct      MatchTier = "product"
	MatchCategory     MatchTier = "category"
	MatchManufacturer MatchTier = "manufacturer"
	MatchNone         MatchTier = "unmatched"
)

// Resolution is the outcome of a rule lookup. Rule is nil when no rule
// matched; Tier is MatchNone in that case.
type Resolution struct {
	Rule *CommissionRule
	Tier MatchTier
}

type CreateRuleRequest struct {
	TargetType     TargetType
	TargetID       string
	OrganizationID *snowflake.ID
	TopLevelRate   *decimal.Decimal
	SubRepRate     *decimal.Decimal
	ValidFrom      *time.Time
	ValidTo        *time.Time
	Description    string
}

type UpdateRuleRequest struct {
	ID           snowflake.ID
	TopLevelRate *decimal.Decimal
	SubRepRate   *decimal.Decimal
	ValidTo      *time.Time
	Description  *string
}

type ListRulesRequest struct {
	TargetType     string
	TargetID       string
	OrganizationID *snowflake.ID
	ActiveOnly     bool
}

type Service interface {
	Create(ctx context.Context, req CreateRuleRequest) (CommissionRule, error)
	Update(ctx context.Context, req UpdateRuleRequest) (CommissionRule, error)
	Deactivate(ctx context.Context, id snowflake.ID) (CommissionRule, error)
	Get(ctx context.Context, id snowflake.ID) (CommissionRule, error)
	List(ctx context.Context, req ListRulesRequest) ([]CommissionRule, error)

	// Resolve finds the single governing rule for a product and
	// representative at a point in time, walking the fixed precedence
	// order: org product, global product, org category, global
	// category, org manufacturer, global manufacturer.
	Resolve(ctx context.Context, product Product, rep Representative, asOf time.Time) (Resolution, error)
}

var (
	ErrInvalidTargetType = errors.New("invalid_target_type")
	ErrInvalidTargetID   = errors.New("invalid_target_id")
	ErrInvalidRate       = errors.New("invalid_rate")
	ErrInvalidValidity   = errors.New("invalid_validity")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("not_found")
	ErrRuleReferenced    = errors.New("rule_referenced")
)
