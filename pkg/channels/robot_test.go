package channels_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func rawConfig(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

type captured struct {
	query url.Values
	body  map[string]any
}

func robotServer(t *testing.T, reply string, calls *atomic.Int32, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		got.query = r.URL.Query()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSignDingTalk_Golden(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "jRhQKmcWDB38YUNeCEXp9yo%2FI5OBM7UP81cpTrETHUw%3D", channels.SignDingTalk("s3cr3t", 1700000000000))
	assert.Equal(t, channels.SignDingTalk("s3cr3t", 1700000000000), channels.SignDingTalk("s3cr3t", 1700000000000))
	assert.NotEqual(t, channels.SignDingTalk("s3cr3t", 1700000000000), channels.SignDingTalk("s3cr3t", 1700000000001))
}

func TestSignedDingTalkURL(t *testing.T) {
	t.Parallel()

	got := channels.SignedDingTalkURL("https://oapi.dingtalk.com/robot/send?access_token=abc", "s3cr3t", fixedTime)
	assert.Equal(t,
		"https://oapi.dingtalk.com/robot/send?access_token=abc&timestamp=1700000000000&sign=jRhQKmcWDB38YUNeCEXp9yo%2FI5OBM7UP81cpTrETHUw%3D",
		got)

	got = channels.SignedDingTalkURL("https://example.com/hook", "s3cr3t", fixedTime)
	assert.Contains(t, got, "https://example.com/hook?timestamp=1700000000000&sign=")
}

func TestDingTalkAdapter(t *testing.T) {
	t.Parallel()

	t.Run("signed text message", func(t *testing.T) {
		var calls atomic.Int32
		var got captured
		srv := robotServer(t, `{"errcode":0,"errmsg":"ok"}`, &calls, &got)

		a := channels.NewDingTalkAdapter(nil, channels.WithRobotClock(func() time.Time { return fixedTime }))
		ch := channels.Channel{Kind: channels.KindDingTalk, Config: rawConfig(t, map[string]string{
			"webhook_url": srv.URL + "/robot/send?access_token=abc",
			"secret":      "s3cr3t",
		})}
		res, err := a.Send(context.Background(), ch, message("order_shipped", notifications.PriorityNormal))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Delivered)
		assert.JSONEq(t, `{"errcode":0,"errmsg":"ok"}`, res.Response)

		assert.Equal(t, "abc", got.query.Get("access_token"))
		assert.Equal(t, "1700000000000", got.query.Get("timestamp"))
		assert.Equal(t, "jRhQKmcWDB38YUNeCEXp9yo/I5OBM7UP81cpTrETHUw=", got.query.Get("sign"))
		assert.Equal(t, map[string]any{
			"msgtype": "text",
			"text":    map[string]any{"content": "Order shipped\nOrder #42 left the warehouse"},
		}, got.body)
	})

	t.Run("high priority renders markdown", func(t *testing.T) {
		var calls atomic.Int32
		var got captured
		srv := robotServer(t, `{"errcode":0,"errmsg":"ok"}`, &calls, &got)

		a := channels.NewDingTalkAdapter(nil)
		ch := channels.Channel{Kind: channels.KindDingTalk, Config: rawConfig(t, map[string]string{"webhook_url": srv.URL})}
		_, err := a.Send(context.Background(), ch, message("order_shipped", notifications.PriorityHigh))
		require.NoError(t, err)
		assert.Empty(t, got.query.Get("sign"))
		assert.Equal(t, map[string]any{
			"msgtype": "markdown",
			"markdown": map[string]any{
				"title": "Order shipped",
				"text":  "### Order shipped\n\nOrder #42 left the warehouse",
			},
		}, got.body)
	})

	t.Run("provider error keeps errmsg verbatim", func(t *testing.T) {
		var calls atomic.Int32
		var got captured
		srv := robotServer(t, `{"errcode":310000,"errmsg":"keywords not in content"}`, &calls, &got)

		a := channels.NewDingTalkAdapter(nil)
		ch := channels.Channel{Kind: channels.KindDingTalk, Config: rawConfig(t, map[string]string{"webhook_url": srv.URL})}
		res, err := a.Send(context.Background(), ch, message("x", notifications.PriorityLow))
		require.Error(t, err)
		assert.ErrorIs(t, err, channels.ErrProviderRejected)
		assert.Equal(t, "keywords not in content", err.Error())
		var pe *channels.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "310000", pe.Code)
		assert.Equal(t, 0, res.Delivered)
	})

	t.Run("missing webhook url fails without a request", func(t *testing.T) {
		a := channels.NewDingTalkAdapter(nil)
		_, err := a.Send(context.Background(), channels.Channel{Kind: channels.KindDingTalk, Config: json.RawMessage(`{"secret":"x"}`)},
			message("x", notifications.PriorityLow))
		assert.ErrorIs(t, err, channels.ErrMissingConfig)

		_, err = a.Send(context.Background(), channels.Channel{Kind: channels.KindDingTalk}, message("x", notifications.PriorityLow))
		assert.ErrorIs(t, err, channels.ErrMissingConfig)
	})

	t.Run("server error is a transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		a := channels.NewDingTalkAdapter(nil)
		ch := channels.Channel{Kind: channels.KindDingTalk, Config: rawConfig(t, map[string]string{"webhook_url": srv.URL})}
		_, err := a.Send(context.Background(), ch, message("x", notifications.PriorityLow))
		assert.ErrorIs(t, err, channels.ErrTransport)
	})
}

func TestWeComAdapter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var got captured
	srv := robotServer(t, `{"errcode":0,"errmsg":"ok"}`, &calls, &got)

	a := channels.NewWeComAdapter(nil, channels.WithRobotClock(func() time.Time { return fixedTime }))
	ch := channels.Channel{Kind: channels.KindWeCom, Config: rawConfig(t, map[string]string{
		"webhook_url": srv.URL + "/cgi-bin/webhook/send?key=k",
		"secret":      "ignored",
	})}
	_, err := a.Send(context.Background(), ch, message("x", notifications.PriorityUrgent))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, got.query.Get("sign"))
	assert.Equal(t, map[string]any{
		"msgtype":  "markdown",
		"markdown": map[string]any{"content": "### Order shipped\n\nOrder #42 left the warehouse"},
	}, got.body)
}
