package deliverylog

import (
	"fmt"
	"time"
)

// Status is the normalized outcome of one delivery attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Entry records one attempt to deliver a message over one channel. Title and
// Body are snapshots: the entry stays readable after the channel or message
// changes. Entries are never updated.
type Entry struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channel_id"`
	ChannelKind string    `json:"channel_kind"`
	ChannelName string    `json:"channel_name"`
	MessageID   string    `json:"message_id,omitempty"`
	MessageType string    `json:"message_type"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Status      Status    `json:"status"`
	Response    string    `json:"response,omitempty"`
	Error       string    `json:"error,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

func (e *Entry) Validate() error {
	switch {
	case e.ChannelID == "":
		return fmt.Errorf("%w: channel id is required", ErrInvalidEntry)
	case !e.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEntry, e.Status)
	}
	return nil
}
