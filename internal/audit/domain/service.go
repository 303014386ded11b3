package domain

import (
	"context"
	"errors"
)

// Entry is one audit fact. Actor identity is always passed explicitly;
// there is no ambient "current user".
type Entry struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter ListFilter) ([]AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
)
