// Package domain contains the payout model and batching contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PayoutStatus is the payout lifecycle. Forward-only:
// calculated → approved → processed.
type PayoutStatus string

const (
	StatusCalculated PayoutStatus = "calculated"
	StatusApproved   PayoutStatus = "approved"
	StatusProcessed  PayoutStatus = "processed"
)

// CommissionPayout is a frozen batch of approved records aggregated for
// payment to one representative over a period. TotalAmount is a
// snapshot taken at creation, never a live aggregate.
type CommissionPayout struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	RepID            snowflake.ID    `gorm:"not null;index:idx_commission_payouts_rep_status" json:"rep_id"`
	BatchNumber      string          `gorm:"type:text;not null;uniqueIndex:ux_commission_payouts_batch_number" json:"batch_number"`
	PeriodStart      time.Time       `gorm:"not null" json:"period_start"`
	PeriodEnd        time.Time       `gorm:"not null" json:"period_end"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	RecordCount      int64           `gorm:"not null;default:0" json:"record_count"`
	Status           PayoutStatus    `gorm:"type:text;not null;default:'calculated';index:idx_commission_payouts_rep_status" json:"status"`
	ApprovedBy       *snowflake.ID   `gorm:"" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `gorm:"" json:"approved_at,omitempty"`
	ProcessedAt      *time.Time      `gorm:"" json:"processed_at,omitempty"`
	PaymentReference string          `gorm:"type:text;not null;default:''" json:"payment_reference,omitempty"`
	Notes            string          `gorm:"type:text;not null;default:''" json:"notes,omitempty"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CommissionPayout) TableName() string { return "commission_payouts" }
