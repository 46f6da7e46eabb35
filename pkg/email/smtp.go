package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPConfig describes an authenticated SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLS requires an encrypted session: implicit TLS on port 465, STARTTLS
	// elsewhere. When false STARTTLS is used opportunistically.
	TLS bool
}

// Validate reports the first missing field.
func (c SMTPConfig) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port is required", ErrInvalidConfig)
	case c.Username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidConfig)
	case c.Password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidConfig)
	}
	return nil
}

type smtpSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates a Sender that dials the relay once per message.
func NewSMTPSender(cfg SMTPConfig) (Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &smtpSender{cfg: cfg}, nil
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	m, err := compose(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	return nil
}

// TagHeader carries Message.Tag, the notification type, on composed mail.
const TagHeader = "X-Notification-Type"

func compose(msg Message) (*mail.Msg, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	m.Subject(msg.Subject)
	if msg.Tag != "" {
		m.SetGenHeader(mail.Header(TagHeader), msg.Tag)
	}
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

func (s *smtpSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
	}
	switch {
	case s.cfg.TLS && s.cfg.Port == 465:
		opts = append(opts, mail.WithSSL())
	case s.cfg.TLS:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	return opts
}
