package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/email/templates"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// EmailConfig is the decoded config of an email channel.
type EmailConfig struct {
	Host                string     `json:"host"`
	Port                flexInt    `json:"port"`
	Username            string     `json:"username"`
	Password            string     `json:"password"`
	To                  stringList `json:"to"`
	From                string     `json:"from"`
	TLS                 bool       `json:"tls"`
	PostmarkServerToken string     `json:"postmark_server_token"`
}

func (c EmailConfig) validate() error {
	switch {
	case c.Host == "":
		return missing(KindEmail, "host")
	case c.Port == 0:
		return missing(KindEmail, "port")
	case c.Username == "":
		return missing(KindEmail, "username")
	case c.Password == "":
		return missing(KindEmail, "password")
	case len(c.To) == 0:
		return missing(KindEmail, "to")
	}
	return nil
}

func (c EmailConfig) sender() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// MailTransport builds the mail transport for a channel config.
type MailTransport func(cfg EmailConfig) (email.Sender, error)

// DefaultMailTransport uses Postmark when the config carries a server token
// and SMTP otherwise.
func DefaultMailTransport(cfg EmailConfig) (email.Sender, error) {
	if cfg.PostmarkServerToken != "" {
		return email.NewPostmarkSender(email.PostmarkConfig{ServerToken: cfg.PostmarkServerToken})
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Host,
		Port:     int(cfg.Port),
		Username: cfg.Username,
		Password: cfg.Password,
		TLS:      cfg.TLS,
	})
}

// StaticMailTransport sends every channel's mail through s, e.g. a
// DevSender in local environments.
func StaticMailTransport(s email.Sender) MailTransport {
	return func(EmailConfig) (email.Sender, error) { return s, nil }
}

type emailAdapter struct {
	transport MailTransport
}

// NewEmailAdapter renders the HTML envelope and hands it to the transport.
// A nil transport means DefaultMailTransport.
func NewEmailAdapter(transport MailTransport) Adapter {
	if transport == nil {
		transport = DefaultMailTransport
	}
	return &emailAdapter{transport: transport}
}

func (a *emailAdapter) Kind() Kind { return KindEmail }

func (a *emailAdapter) Send(ctx context.Context, ch Channel, msg notifications.Message) (Result, error) {
	var cfg EmailConfig
	if err := decodeConfig(ch, &cfg); err != nil {
		return Result{}, err
	}
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}

	html, err := templates.Render(ctx, templates.Envelope(templates.EnvelopeData{
		Title:     msg.Title,
		Body:      msg.Body,
		Priority:  msg.Priority.String(),
		ActionURL: msg.ActionURL,
	}))
	if err != nil {
		return Result{}, fmt.Errorf("render email: %w", err)
	}

	sender, err := a.transport(cfg)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	res := Result{Attempted: len(cfg.To)}
	err = sender.Send(ctx, email.Message{
		From:    cfg.sender(),
		To:      cfg.To,
		Subject: msg.Title,
		HTML:    html,
		Tag:     msg.Type,
	})
	switch {
	case errors.Is(err, email.ErrInvalidMessage):
		return res, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	case err != nil:
		return res, transportError(err)
	}
	res.Delivered = res.Attempted
	res.Response = "accepted for " + strings.Join(cfg.To, ",")
	return res, nil
}

// flexInt decodes a JSON number or a numeric string.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		*n = flexInt(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}
