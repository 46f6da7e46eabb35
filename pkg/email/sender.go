package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// Sender delivers a rendered message. Implementations: SMTP, Postmark, and
// the file-backed DevSender.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a rendered HTML email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Tag     string
}

// Validate checks that the message can be handed to a transport.
func (m Message) Validate() error {
	if m.From == "" {
		return fmt.Errorf("%w: sender is required", ErrInvalidMessage)
	}
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("%w: invalid sender %q", ErrInvalidMessage, m.From)
	}
	if len(m.To) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidMessage)
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("%w: invalid recipient %q", ErrInvalidMessage, to)
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if m.HTML == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
