package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Client to server events.
const (
	EventMarkRead       = "mark_read"
	EventMarkAllRead    = "mark_all_read"
	EventGetUnreadCount = "get_unread_count"
	EventPing           = "ping"
)

// Server to client events.
const (
	EventConnected          = "connected"
	EventUnreadCount        = "unread_count"
	EventMessageRead        = "message_read"
	EventAllRead            = "all_read"
	EventNewMessage         = "new_message"
	EventNotificationStatus = "notification_status"
	EventPong               = "pong"
	EventError              = "error"
)

// Frame is the wire envelope for every event in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals data into a frame.
func Encode(event string, data any) ([]byte, error) {
	if data == nil {
		data = struct{}{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// Decode parses a client frame. Data defaults to an empty object.
func Decode(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("%w: missing event", ErrMalformedFrame)
	}
	if len(f.Data) == 0 || string(f.Data) == "null" {
		f.Data = json.RawMessage("{}")
	}
	return f, nil
}

type Connected struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type UnreadCount struct {
	Count int `json:"count"`
}

type MarkRead struct {
	MessageID string `json:"messageId"`
}

type MessageRead struct {
	MessageID string `json:"messageId"`
	Success   bool   `json:"success"`
}

type AllRead struct {
	Success bool `json:"success"`
}

// NewMessage is the push form of a stored message.
type NewMessage struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Priority    string    `json:"priority"`
	RelatedID   string    `json:"relatedId,omitempty"`
	RelatedType string    `json:"relatedType,omitempty"`
	ActionURL   string    `json:"actionUrl,omitempty"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewMessageFrom converts msg for pushing. A freshly pushed message is unread.
func NewMessageFrom(msg notifications.Message) NewMessage {
	nm := NewMessage{
		ID:        msg.ID,
		Type:      msg.Type,
		Title:     msg.Title,
		Content:   msg.Body,
		Priority:  msg.Priority.String(),
		ActionURL: msg.ActionURL,
		CreatedAt: msg.CreatedAt,
	}
	if msg.Origin != nil {
		nm.RelatedID = msg.Origin.ID
		nm.RelatedType = msg.Origin.Type
	}
	return nm
}

// NotificationStatus reports a channel delivery outcome to an operator.
type NotificationStatus struct {
	ChannelType string `json:"channelType"`
	ChannelName string `json:"channelName"`
	Success     bool   `json:"success"`
	Message     string `json:"message"`
}

type Pong struct {
	Timestamp time.Time `json:"timestamp"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
