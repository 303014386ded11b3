package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	commissiondomain "github.com/repwell/repwell/internal/commission/domain"
)

type GenerateRequest struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
}

type ApproveRequest struct {
	PayoutID   snowflake.ID
	ApproverID snowflake.ID
}

type ProcessRequest struct {
	PayoutID         snowflake.ID
	PaymentReference string
}

type ListRequest struct {
	RepID  *snowflake.ID
	Status string
	From   *time.Time
	To     *time.Time
}

// Detail is a payout with the records it froze in.
type Detail struct {
	Payout  CommissionPayout                    `json:"payout"`
	Records []commissiondomain.CommissionRecord `json:"records"`
}

type Service interface {
	// Generate batches every approved, unclaimed record in the period
	// into one payout per representative. Each representative's claim is
	// a single transaction; a lost claim rolls that payout back and the
	// next run retries. Representatives without qualifying records
	// produce no payout.
	Generate(ctx context.Context, req GenerateRequest) ([]CommissionPayout, error)
	// GenerateForRep batches a single representative. Returns nil when
	// no records qualify.
	GenerateForRep(ctx context.Context, repID snowflake.ID, req GenerateRequest) (*CommissionPayout, error)
	Approve(ctx context.Context, req ApproveRequest) (CommissionPayout, error)
	Process(ctx context.Context, req ProcessRequest) (CommissionPayout, error)
	Get(ctx context.Context, id snowflake.ID) (Detail, error)
	List(ctx context.Context, req ListRequest) ([]CommissionPayout, error)
}

var (
	ErrInvalidID               = errors.New("invalid_id")
	ErrInvalidPeriod           = errors.New("invalid_period")
	ErrInvalidApprover         = errors.New("invalid_approver")
	ErrInvalidStatus           = errors.New("invalid_status")
	ErrMissingPaymentReference = errors.New("missing_payment_reference")
	ErrNotFound                = errors.New("not_found")
	// ErrNotCalculated rejects approval of a payout that is past the
	// calculated state.
	ErrNotCalculated = errors.New("payout_not_calculated")
	// ErrNotApproved rejects processing of a payout that was never
	// approved.
	ErrNotApproved = errors.New("payout_not_approved")
	// ErrAlreadyProcessed rejects re-processing of a terminal payout.
	ErrAlreadyProcessed = errors.New("payout_already_processed")
	// ErrClaimConflict rolls back a batch run that lost records to a
	// concurrent run mid-claim. The next scheduled run retries.
	ErrClaimConflict = errors.New("claim_conflict")
)
