// Package domain contains the commission record model and calculator contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RecordStatus is the record lifecycle. Transitions are forward-only:
// pending → approved → paid.
type RecordStatus string

const (
	StatusPending  RecordStatus = "pending"
	StatusApproved RecordStatus = "approved"
	StatusPaid     RecordStatus = "paid"
)

// CommissionType classifies which precedence tier produced a record.
// TypeSubRep marks the parent representative's share of a
// sub-representative's sale; TypeUnmatched marks "no rule configured",
// kept distinct so reporting can separate it from a genuine zero rate.
type CommissionType string

const (
	TypeProduct      CommissionType = "product"
	TypeCategory     CommissionType = "category"
	TypeManufacturer CommissionType = "manufacturer"
	TypeSubRep       CommissionType = "sub_rep"
	TypeUnmatched    CommissionType = "unmatched"
)

// CommissionRecord is the atomic obligation linking one order item to
// one payee and one rate. Immutable once created except for approval
// metadata and the single payout assignment.
type CommissionRecord struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrderID          snowflake.ID    `gorm:"not null;index" json:"order_id"`
	OrderItemID      snowflake.ID    `gorm:"not null;uniqueIndex:ux_commission_records_order_item_rep" json:"order_item_id"`
	RepID            snowflake.ID    `gorm:"not null;uniqueIndex:ux_commission_records_order_item_rep;index:idx_commission_records_rep_status" json:"rep_id"`
	ParentRepID      *snowflake.ID   `gorm:"index" json:"parent_rep_id,omitempty"`
	CommissionRuleID *snowflake.ID   `gorm:"index" json:"commission_rule_id,omitempty"`
	PayoutID         *snowflake.ID   `gorm:"index" json:"payout_id,omitempty"`
	CommissionType   CommissionType  `gorm:"type:text;not null" json:"commission_type"`
	BaseAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"base_amount"`
	CommissionRate   decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"commission_rate"`
	CommissionAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"commission_amount"`
	Status           RecordStatus    `gorm:"type:text;not null;default:'pending';index:idx_commission_records_rep_status" json:"status"`
	CalculationDate  time.Time       `gorm:"not null;index" json:"calculation_date"`
	ApprovedBy       *snowflake.ID   `gorm:"" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `gorm:"" json:"approved_at,omitempty"`
	Notes            string          `gorm:"type:text;not null;default:''" json:"notes,omitempty"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CommissionRecord) TableName() string { return "commission_records" }

var hundred = decimal.NewFromInt(100)

// Amount computes round(base × rate / 100, 2).
func Amount(base, rate decimal.Decimal) decimal.Decimal {
	return base.Mul(rate).Div(hundred).Round(2)
}
