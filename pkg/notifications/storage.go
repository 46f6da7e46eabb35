package notifications

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("notification not found")
	ErrInvalidMessage  = errors.New("invalid notification message")
	ErrInvalidPriority = errors.New("invalid notification priority")
)

// Storage persists messages and per-user read state.
//
// Get, List and CountUnread only see messages addressed to the user or to
// everyone. MarkRead is idempotent: the first read timestamp is kept.
type Storage interface {
	Create(ctx context.Context, msg Message) error
	Get(ctx context.Context, userID, messageID string) (*Item, error)
	List(ctx context.Context, userID string, opts ListOptions) ([]Item, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, messageID string) error
	// MarkAllRead marks every message visible to userID that exists when the
	// call starts and returns how many changed state.
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, messageID string) error
}

// ListOptions filters and paginates a user's inbox. Results are newest first.
type ListOptions struct {
	Limit      int // 0 = no limit
	Offset     int
	OnlyUnread bool
	Types      []string
	Since      *time.Time
}
