package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/repwell/repwell/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status RecordStatus
	RepID  *snowflake.ID
	From   *time.Time
	To     *time.Time
	Search string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *CommissionRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CommissionRecord, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*CommissionRecord, error)
	Summary(ctx context.Context, db *gorm.DB, filter ListFilter) (Summary, error)
	// ApproveConditional flips a pending record to approved. Returns the
	// number of rows updated; zero means the record was not pending.
	ApproveConditional(ctx context.Context, db *gorm.DB, id, approverID snowflake.ID, notes string, at time.Time) (int64, error)
}
