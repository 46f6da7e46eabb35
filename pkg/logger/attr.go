package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Role records a role name under the key "role".
func Role(role string) slog.Attr {
	if role == "" {
		return slog.Attr{}
	}
	return slog.String("role", role)
}

// Department records a department identifier under the key "department".
func Department(dept string) slog.Attr {
	if dept == "" {
		return slog.Attr{}
	}
	return slog.String("department", dept)
}

// MessageID records the notification message identifier.
func MessageID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("message_id", id)
}

// MessageType records the business message type tag (e.g. "order_shipped").
func MessageType(t string) slog.Attr {
	return slog.String("message_type", t)
}

// ChannelID records an external channel identifier.
func ChannelID(id string) slog.Attr {
	return slog.String("channel_id", id)
}

// ChannelKind records the external channel kind.
func ChannelKind(kind string) slog.Attr {
	return slog.String("channel_kind", kind)
}

// ConnectionID records a real-time connection handle.
func ConnectionID(id string) slog.Attr {
	return slog.String("connection_id", id)
}

// Status records a normalized delivery status.
func Status(s string) slog.Attr {
	return slog.String("status", s)
}

// Count records a counter value under the given key.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}
