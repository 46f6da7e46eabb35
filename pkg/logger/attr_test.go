package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("dispatch", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "dispatch", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestIdentityAttrs(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want string
	}{
		{"user", logger.UserID("u1"), "user_id", "u1"},
		{"role", logger.Role("admin"), "role", "admin"},
		{"department", logger.Department("ops"), "department", "ops"},
		{"message", logger.MessageID("m1"), "message_id", "m1"},
		{"channel", logger.ChannelID("c1"), "channel_id", "c1"},
		{"kind", logger.ChannelKind("dingtalk"), "channel_kind", "dingtalk"},
		{"connection", logger.ConnectionID("conn"), "connection_id", "conn"},
		{"status", logger.Status("failed"), "status", "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value.String())
		})
	}
}

func TestEmptyIdentityAttrs(t *testing.T) {
	assert.True(t, logger.UserID("").Equal(slog.Attr{}))
	assert.True(t, logger.Role("").Equal(slog.Attr{}))
	assert.True(t, logger.Department("").Equal(slog.Attr{}))
	assert.True(t, logger.MessageID("").Equal(slog.Attr{}))
}
