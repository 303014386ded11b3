// Package domain contains the commission rule model and resolution contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TargetType is the dimension a rule matches against. Closed set;
// the resolver switches exhaustively so a typo can never silently no-op.
type TargetType string

const (
	TargetProduct      TargetType = "product"
	TargetCategory     TargetType = "category"
	TargetManufacturer TargetType = "manufacturer"
)

func (t TargetType) Valid() bool {
	switch t {
	case TargetProduct, TargetCategory, TargetManufacturer:
		return true
	default:
		return false
	}
}

// RepType distinguishes a top-level representative from a
// sub-representative attached to a parent.
type RepType string

const (
	RepTypeTopLevel RepType = "top_level"
	RepTypeSubRep   RepType = "sub_rep"
)

func (t RepType) Valid() bool {
	return t == RepTypeTopLevel || t == RepTypeSubRep
}

// CommissionRule is one versioned commission rule. Rules that have
// produced records are never mutated or deleted; they are deactivated
// and replaced so historical records always resolve to the exact rule
// version that produced them.
type CommissionRule struct {
	ID             snowflake.ID        `gorm:"primaryKey" json:"id"`
	TargetType     TargetType          `gorm:"type:text;not null;index:idx_commission_rules_target" json:"target_type"`
	TargetID       string              `gorm:"type:text;not null;index:idx_commission_rules_target" json:"target_id"`
	OrganizationID *snowflake.ID       `gorm:"index" json:"organization_id,omitempty"`
	TopLevelRate   decimal.NullDecimal `gorm:"type:numeric(7,4)" json:"top_level_rate,omitempty"`
	SubRepRate     decimal.NullDecimal `gorm:"type:numeric(7,4)" json:"sub_rep_rate,omitempty"`
	ValidFrom      time.Time           `gorm:"not null" json:"valid_from"`
	ValidTo        *time.Time          `gorm:"" json:"valid_to,omitempty"`
	IsActive       bool                `gorm:"not null;default:true;index" json:"is_active"`
	Description    string              `gorm:"type:text;not null;default:''" json:"description,omitempty"`
	CreatedAt      time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CommissionRule) TableName() string { return "commission_rules" }

// AppliesAt reports whether the rule is active and time-valid at t.
// The validity window is inclusive; a nil ValidTo is open-ended.
func (r CommissionRule) AppliesAt(t time.Time) bool {
	if !r.IsActive {
		return false
	}
	if t.Before(r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && t.After(*r.ValidTo) {
		return false
	}
	return true
}

// RateFor extracts the percentage a rule grants a representative of the
// given type. A nil rule or an unset tier yields zero so that "no rule
// configured" still produces an auditable record downstream.
func RateFor(rule *CommissionRule, repType RepType) decimal.Decimal {
	if rule == nil {
		return decimal.Zero
	}
	switch repType {
	case RepTypeSubRep:
		if rule.SubRepRate.Valid {
			return rule.SubRepRate.Decimal
		}
	default:
		if rule.TopLevelRate.Valid {
			return rule.TopLevelRate.Decimal
		}
	}
	return decimal.Zero
}
