package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ruledomain "github.com/repwell/repwell/internal/rule/domain"
	"github.com/repwell/repwell/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

// OrderItem is the opaque order line supplied by order management.
// TotalAmount is captured as the base snapshot; later product price
// changes never alter historical records.
type OrderItem struct {
	ID          snowflake.ID
	OrderID     snowflake.ID
	ProductID   string
	Quantity    int64
	UnitPrice   decimal.Decimal
	TotalAmount decimal.Decimal
}

type CalculateRequest struct {
	OrderItem      OrderItem
	Product        ruledomain.Product
	Representative ruledomain.Representative
}

type ApproveRequest struct {
	RecordID   snowflake.ID
	ApproverID snowflake.ID
	Notes      string
}

type ListRequest struct {
	pagination.Pagination
	Status string
	RepID  *snowflake.ID
	From   *time.Time
	To     *time.Time
	Search string
}

type ListResponse struct {
	pagination.PageInfo
	Records []CommissionRecord `json:"records"`
}

// Summary is the reporting view over records for a filter set.
type Summary struct {
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	RecordCount    int64           `json:"record_count"`
}

type Service interface {
	// Calculate resolves the governing rule and emits one record for
	// the selling representative, plus a second for the parent when the
	// seller is a sub-representative with a parent. Both records are
	// written atomically.
	Calculate(ctx context.Context, req CalculateRequest) ([]CommissionRecord, error)
	Approve(ctx context.Context, req ApproveRequest) (CommissionRecord, error)
	Get(ctx context.Context, id snowflake.ID) (CommissionRecord, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Summary(ctx context.Context, req ListRequest) (Summary, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidOrderItem  = errors.New("invalid_order_item")
	ErrInvalidRep        = errors.New("invalid_representative")
	ErrInvalidApprover   = errors.New("invalid_approver")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrNotFound          = errors.New("not_found")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrAlreadyCalculated = errors.New("already_calculated")
)
