package email_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/email"
)

func validMessage() email.Message {
	return email.Message{
		From:    "robot@example.com",
		To:      []string{"ops@example.com", "Sales <sales@example.com>"},
		Subject: "Order shipped",
		HTML:    "<p>hello</p>",
		Tag:     "order_shipped",
	}
}

func TestMessage_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*email.Message)
		ok     bool
	}{
		{"valid", func(*email.Message) {}, true},
		{"missing sender", func(m *email.Message) { m.From = "" }, false},
		{"bad sender", func(m *email.Message) { m.From = "not-an-address" }, false},
		{"no recipients", func(m *email.Message) { m.To = nil }, false},
		{"bad recipient", func(m *email.Message) { m.To = []string{"x@"} }, false},
		{"blank subject", func(m *email.Message) { m.Subject = "  " }, false},
		{"empty body", func(m *email.Message) { m.HTML = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := validMessage()
			tt.mutate(&m)
			err := m.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, email.ErrInvalidMessage)
		})
	}
}

func TestSMTPConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := email.SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p"}
	_, err := email.NewSMTPSender(valid)
	require.NoError(t, err)

	for name, cfg := range map[string]email.SMTPConfig{
		"host":     {Port: 587, Username: "u", Password: "p"},
		"port":     {Host: "h", Username: "u", Password: "p"},
		"username": {Host: "h", Port: 25, Password: "p"},
		"password": {Host: "h", Port: 25, Username: "u"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := email.NewSMTPSender(cfg)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
		})
	}
}

func TestSMTPSender_RejectsInvalidMessage(t *testing.T) {
	t.Parallel()

	sender, err := email.NewSMTPSender(email.SMTPConfig{Host: "127.0.0.1", Port: 1, Username: "u", Password: "p"})
	require.NoError(t, err)

	err = sender.Send(context.Background(), email.Message{})
	assert.ErrorIs(t, err, email.ErrInvalidMessage)
}

func TestSMTPSender_UnreachableRelay(t *testing.T) {
	t.Parallel()

	sender, err := email.NewSMTPSender(email.SMTPConfig{Host: "127.0.0.1", Port: 1, Username: "u", Password: "p"})
	require.NoError(t, err)

	err = sender.Send(context.Background(), validMessage())
	assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
}

func TestNewPostmarkSender(t *testing.T) {
	t.Parallel()

	_, err := email.NewPostmarkSender(email.PostmarkConfig{})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	sender, err := email.NewPostmarkSender(email.PostmarkConfig{ServerToken: "server"})
	require.NoError(t, err)
	assert.ErrorIs(t, sender.Send(context.Background(), email.Message{}), email.ErrInvalidMessage)
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "mail")
	sender := email.NewDevSender(dir)

	require.NoError(t, sender.Send(context.Background(), validMessage()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()
	assert.True(t, strings.HasSuffix(name, "_order_shipped.eml"), name)

	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	eml := string(raw)
	assert.Contains(t, eml, "Subject: Order shipped")
	assert.Contains(t, eml, email.TagHeader+": order_shipped")
	assert.Contains(t, eml, "robot@example.com")
	assert.Contains(t, eml, "<p>hello</p>")

	assert.ErrorIs(t, sender.Send(context.Background(), email.Message{}), email.ErrInvalidMessage)
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "invalid messages are not written")
}

func TestSenderFunc(t *testing.T) {
	t.Parallel()

	var got email.Message
	var s email.Sender = email.SenderFunc(func(_ context.Context, m email.Message) error {
		got = m
		return nil
	})
	require.NoError(t, s.Send(context.Background(), validMessage()))
	assert.Equal(t, "Order shipped", got.Subject)
}
