package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/deliverylog"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/recipients"
)

// Request describes one business event to fan out.
type Request struct {
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Targeting recipients.Targeting   `json:"targeting"`
	Priority  notifications.Priority `json:"priority"`
	Category  string                 `json:"category,omitempty"`
	Origin    *notifications.Origin  `json:"origin,omitempty"`
	ActionURL string                 `json:"action_url,omitempty"`
	// CreatedBy receives notification_status events for each channel outcome.
	CreatedBy string `json:"created_by,omitempty"`
}

// UnmarshalJSON defaults a missing priority to normal.
func (r *Request) UnmarshalJSON(b []byte) error {
	type plain Request
	p := plain{Priority: notifications.PriorityNormal}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = Request(p)
	return nil
}

func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Type) == "":
		return fmt.Errorf("%w: type is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidRequest)
	case !r.Priority.Valid():
		return fmt.Errorf("%w: %w", ErrInvalidRequest, notifications.ErrInvalidPriority)
	}
	if err := r.Targeting.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func (r Request) message(id string, recipients []string, now time.Time) notifications.Message {
	return notifications.Message{
		ID:         id,
		Type:       r.Type,
		Title:      r.Title,
		Body:       r.Body,
		Priority:   r.Priority,
		Category:   r.Category,
		Recipients: recipients,
		Origin:     r.Origin,
		ActionURL:  r.ActionURL,
		CreatedBy:  r.CreatedBy,
		CreatedAt:  now,
	}
}

// Outcome is the result of one channel attempt.
type Outcome struct {
	Channel  channels.Channel
	Result   channels.Result
	Err      error
	Entry    deliverylog.Entry
	Duration time.Duration
}

// OK reports whether the attempt counts as delivered. Partial success is OK.
func (o Outcome) OK() bool { return o.Err == nil }

// Summary describes what Notify did synchronously. Channel outcomes arrive
// later and are read with Wait.
type Summary struct {
	MessageID    string
	Type         string
	Recipients   []string
	Broadcast    bool
	Persisted    bool
	PushAttempts int
	// Pushed counts connections reached, so one user on two devices counts twice.
	Pushed int

	done     chan struct{}
	outcomes []Outcome
}

func newSummary(msgID, typ string) *Summary {
	return &Summary{MessageID: msgID, Type: typ, done: make(chan struct{})}
}

func (s *Summary) finish(outcomes []Outcome) {
	s.outcomes = outcomes
	close(s.done)
}

// Done is closed once every channel attempt has been recorded.
func (s *Summary) Done() <-chan struct{} { return s.done }

// Wait blocks until channel dispatch completes or ctx ends. Skipped channels
// have no outcome.
func (s *Summary) Wait(ctx context.Context) ([]Outcome, error) {
	select {
	case <-s.done:
		return s.outcomes, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
