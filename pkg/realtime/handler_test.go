package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/jwt"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
)

type harness struct {
	srv      *httptest.Server
	registry *realtime.Registry
	inbox    *notifications.MemoryStorage
	auth     *jwt.Service
}

func newHarness(t *testing.T, opts ...realtime.HandlerOption) *harness {
	t.Helper()

	auth, err := jwt.NewFromString("test-signing-key-0123456789abcdef")
	require.NoError(t, err)

	h := &harness{
		registry: realtime.NewRegistry(),
		inbox:    notifications.NewMemoryStorage(),
		auth:     auth,
	}
	h.srv = httptest.NewServer(realtime.NewHandler(h.registry, auth, h.inbox, opts...))
	t.Cleanup(func() {
		h.registry.CloseAll()
		h.srv.Close()
	})
	return h
}

func (h *harness) seed(t *testing.T, id string, recipients ...string) {
	t.Helper()
	require.NoError(t, h.inbox.Create(context.Background(), notifications.Message{
		ID:         id,
		Type:       "system",
		Title:      "Title " + id,
		Priority:   notifications.PriorityNormal,
		Recipients: recipients,
	}))
}

func (h *harness) dial(t *testing.T, userID, role string) *websocket.Conn {
	t.Helper()
	token, err := h.auth.Issue(userID, role, "ops", time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := realtime.Encode(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func next(t *testing.T, conn *websocket.Conn) realtime.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := realtime.Decode(data)
	require.NoError(t, err)
	return f
}

func expect[T any](t *testing.T, conn *websocket.Conn, event string) T {
	t.Helper()
	f := next(t, conn)
	require.Equal(t, event, f.Event, "payload: %s", f.Data)
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

func TestHandler_RejectsMissingToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_GreetsWithUnreadCount(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seed(t, "m1", "u1", "u2")
	h.seed(t, "m2", "u2")
	h.seed(t, "m3")

	conn := h.dial(t, "u1", "admin")
	hello := expect[realtime.Connected](t, conn, realtime.EventConnected)
	assert.Equal(t, "u1", hello.UserID)

	count := expect[realtime.UnreadCount](t, conn, realtime.EventUnreadCount)
	assert.Equal(t, 2, count.Count)
	assert.Equal(t, 1, h.registry.Online("u1"))
}

func TestHandler_PingPong(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	conn := h.dial(t, "u1", "")
	expect[realtime.Connected](t, conn, realtime.EventConnected)
	expect[realtime.UnreadCount](t, conn, realtime.EventUnreadCount)

	send(t, conn, realtime.EventPing, nil)
	pong := expect[realtime.Pong](t, conn, realtime.EventPong)
	assert.False(t, pong.Timestamp.IsZero())
}

func TestHandler_MarkReadSyncsAllDevices(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seed(t, "m1", "u1")
	h.seed(t, "m2", "u1")

	phone := h.dial(t, "u1", "")
	expect[realtime.Connected](t, phone, realtime.EventConnected)
	expect[realtime.UnreadCount](t, phone, realtime.EventUnreadCount)
	laptop := h.dial(t, "u1", "")
	expect[realtime.Connected](t, laptop, realtime.EventConnected)
	expect[realtime.UnreadCount](t, laptop, realtime.EventUnreadCount)

	send(t, phone, realtime.EventMarkRead, realtime.MarkRead{MessageID: "m1"})
	ack := expect[realtime.MessageRead](t, phone, realtime.EventMessageRead)
	assert.Equal(t, "m1", ack.MessageID)
	assert.True(t, ack.Success)
	assert.Equal(t, 1, expect[realtime.UnreadCount](t, phone, realtime.EventUnreadCount).Count)
	assert.Equal(t, 1, expect[realtime.UnreadCount](t, laptop, realtime.EventUnreadCount).Count)

	// Marking again is harmless.
	send(t, phone, realtime.EventMarkRead, realtime.MarkRead{MessageID: "m1"})
	assert.True(t, expect[realtime.MessageRead](t, phone, realtime.EventMessageRead).Success)
	assert.Equal(t, 1, expect[realtime.UnreadCount](t, phone, realtime.EventUnreadCount).Count)

	send(t, phone, realtime.EventMarkRead, realtime.MarkRead{MessageID: "missing"})
	assert.False(t, expect[realtime.MessageRead](t, phone, realtime.EventMessageRead).Success)
}

func TestHandler_MarkAllRead(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.seed(t, "m1", "u1")
	h.seed(t, "m2")

	conn := h.dial(t, "u1", "")
	expect[realtime.Connected](t, conn, realtime.EventConnected)
	assert.Equal(t, 2, expect[realtime.UnreadCount](t, conn, realtime.EventUnreadCount).Count)

	send(t, conn, realtime.EventMarkAllRead, nil)
	assert.True(t, expect[realtime.AllRead](t, conn, realtime.EventAllRead).Success)
	assert.Equal(t, 0, expect[realtime.UnreadCount](t, conn, realtime.EventUnreadCount).Count)

	send(t, conn, realtime.EventGetUnreadCount, nil)
	assert.Equal(t, 0, expect[realtime.UnreadCount](t, conn, realtime.EventUnreadCount).Count)
}

func TestHandler_ErrorsForBadFrames(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	conn := h.dial(t, "u1", "")
	expect[realtime.Connected](t, conn, realtime.EventConnected)
	expect[realtime.UnreadCount](t, conn, realtime.EventUnreadCount)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "malformed frame", expect[realtime.ErrorEvent](t, conn, realtime.EventError).Message)

	send(t, conn, "subscribe", nil)
	assert.Contains(t, expect[realtime.ErrorEvent](t, conn, realtime.EventError).Message, "subscribe")

	send(t, conn, realtime.EventMarkRead, map[string]string{})
	assert.Equal(t, "messageId is required", expect[realtime.ErrorEvent](t, conn, realtime.EventError).Message)
}

func TestHandler_RateLimitsInboundFrames(t *testing.T) {
	t.Parallel()
	h := newHarness(t, realtime.WithRateLimit(0.001, 1))
	conn := h.dial(t, "u1", "")
	expect[realtime.Connected](t, conn, realtime.EventConnected)
	expect[realtime.UnreadCount](t, conn, realtime.EventUnreadCount)

	send(t, conn, realtime.EventPing, nil)
	expect[realtime.Pong](t, conn, realtime.EventPong)
	send(t, conn, realtime.EventPing, nil)
	msg := expect[realtime.ErrorEvent](t, conn, realtime.EventError).Message
	assert.Equal(t, realtime.ErrRateLimited.Error(), msg)
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	t.Parallel()
	h := newHarness(t, realtime.WithAllowedOrigins("https://app.example.com"))
	token, err := h.auth.Issue("u1", "", "", time.Minute)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.example.com"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	expect[realtime.Connected](t, conn, realtime.EventConnected)
}

func TestHandler_DisconnectLeavesRegistry(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	conn := h.dial(t, "u1", "")
	expect[realtime.Connected](t, conn, realtime.EventConnected)
	require.Equal(t, 1, h.registry.Connections())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.registry.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}
