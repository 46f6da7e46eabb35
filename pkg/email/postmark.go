package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mrz1836/postmark"
)

// PostmarkConfig holds Postmark API tokens. AccountToken is optional for
// sending.
type PostmarkConfig struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
}

type postmarkSender struct {
	client *postmark.Client
}

// NewPostmarkSender creates a Sender backed by Postmark's transactional API.
func NewPostmarkSender(cfg PostmarkConfig) (Sender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: postmark server token is required", ErrInvalidConfig)
	}
	return &postmarkSender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
	}, nil
}

func (p *postmarkSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     msg.From,
		To:       strings.Join(msg.To, ","),
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		HTMLBody: msg.HTML,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}
