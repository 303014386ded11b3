package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is an append-only trail entry. Approvals, payout transitions,
// resolution ambiguities and flagged calculations all land here.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorID    string            `gorm:"type:text;not null" json:"actor_id"`
	Action     string            `gorm:"type:text;not null" json:"action"`
	TargetType string            `gorm:"type:text;not null;index:idx_audit_logs_target" json:"target_type"`
	TargetID   string            `gorm:"type:text;not null;index:idx_audit_logs_target" json:"target_id"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

// ActorSystem identifies entries written by the engine itself rather
// than an administrator.
const ActorSystem = "system"
