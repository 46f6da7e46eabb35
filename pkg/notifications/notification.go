package notifications

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Priority orders messages for channel filtering. Values compare with the
// usual integer operators.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

var priorityNames = [...]string{"low", "normal", "high", "urgent"}

// ParsePriority accepts the textual form, case-insensitively. An empty
// string yields PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityNormal, nil
	}
	for i, name := range priorityNames {
		if name == s {
			return Priority(i), nil
		}
	}
	return PriorityNormal, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// Valid reports whether p is one of the defined levels.
func (p Priority) Valid() bool { return p >= PriorityLow && p <= PriorityUrgent }

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// MarshalText encodes p as low|normal|high|urgent.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Origin points at the business entity that triggered a message.
type Origin struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Message is one durable notification. A message addressed to many users is
// still a single Message; Recipients holds the ordered, de-duplicated
// addressee list. An empty list addresses every user.
type Message struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Priority   Priority  `json:"priority"`
	Category   string    `json:"category,omitempty"`
	Recipients []string  `json:"recipients,omitempty"`
	Origin     *Origin   `json:"origin,omitempty"`
	ActionURL  string    `json:"action_url,omitempty"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Broadcast reports whether the message has no specific addressee.
func (m Message) Broadcast() bool { return len(m.Recipients) == 0 }

// AddressedTo reports whether userID should see the message.
func (m Message) AddressedTo(userID string) bool {
	return m.Broadcast() || slices.Contains(m.Recipients, userID)
}

// Validate checks the fields storage relies on.
func (m Message) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidMessage)
	case m.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidMessage)
	case m.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidMessage)
	case !m.Priority.Valid():
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrInvalidPriority)
	}
	return nil
}

// Item is a message as seen by one user, with that user's read state.
type Item struct {
	Message
	Read   bool       `json:"read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}

// Dedupe returns ids without empty strings and repeats, keeping first
// appearance order.
func Dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
