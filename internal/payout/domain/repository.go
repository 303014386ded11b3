package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	commissiondomain "github.com/repwell/repwell/internal/commission/domain"
	"gorm.io/gorm"
)

type ListFilter struct {
	RepID  *snowflake.ID
	Status PayoutStatus
	From   *time.Time
	To     *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payout *CommissionPayout) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CommissionPayout, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]CommissionPayout, error)

	// RepsWithClaimable lists representatives holding approved,
	// unclaimed records inside the period. A zero periodStart is an
	// open-ended lower bound.
	RepsWithClaimable(ctx context.Context, db *gorm.DB, periodStart, periodEnd time.Time) ([]snowflake.ID, error)
	// ClaimableForRep locks the claimable records for one
	// representative. Must run inside the claiming transaction.
	ClaimableForRep(ctx context.Context, tx *gorm.DB, repID snowflake.ID, periodStart, periodEnd time.Time) ([]commissiondomain.CommissionRecord, error)
	// ClaimRecords assigns records to a payout and flips them to paid,
	// guarded by status = approved AND payout_id IS NULL so a record
	// claimed by a concurrent run is invisible here. Returns rows claimed.
	ClaimRecords(ctx context.Context, tx *gorm.DB, payoutID snowflake.ID, recordIDs []snowflake.ID, at time.Time) (int64, error)

	RecordsForPayout(ctx context.Context, db *gorm.DB, payoutID snowflake.ID) ([]commissiondomain.CommissionRecord, error)
	// ApproveConditional flips calculated to approved; zero rows means
	// the payout was not in calculated state.
	ApproveConditional(ctx context.Context, db *gorm.DB, id, approverID snowflake.ID, at time.Time) (int64, error)
	// ProcessConditional flips approved to processed with the payment
	// reference; zero rows means the payout was not approved.
	ProcessConditional(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentReference string, at time.Time) (int64, error)
}
