package deliverylog

import (
	"context"
	"time"
)

// Storage is an append-only sink for entries.
type Storage interface {
	Append(ctx context.Context, entries ...Entry) error
	Query(ctx context.Context, c Criteria) ([]Entry, error)
}

// Criteria filters Query results. Zero fields match everything. Results are
// newest first.
type Criteria struct {
	ChannelID string
	MessageID string
	Status    Status
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// Match reports whether e satisfies the filter fields of c.
func (c Criteria) Match(e Entry) bool {
	switch {
	case c.ChannelID != "" && e.ChannelID != c.ChannelID:
		return false
	case c.MessageID != "" && e.MessageID != c.MessageID:
		return false
	case c.Status != "" && e.Status != c.Status:
		return false
	case !c.Since.IsZero() && e.SentAt.Before(c.Since):
		return false
	case !c.Until.IsZero() && !e.SentAt.Before(c.Until):
		return false
	}
	return true
}
