package channels_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

type wechatFake struct {
	tokenCalls atomic.Int32
	tokenReply string
	mu         sync.Mutex
	sent       []map[string]any
	// replies per open id; default success
	replies map[string]string
}

func (f *wechatFake) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		assert.Equal(t, "client_credential", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "wx123", r.URL.Query().Get("appid"))
		_, _ = io.WriteString(w, f.tokenReply)
	})
	mux.HandleFunc("/cgi-bin/message/template/send", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TOKEN", r.URL.Query().Get("access_token"))
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		f.mu.Lock()
		f.sent = append(f.sent, body)
		f.mu.Unlock()
		if reply, ok := f.replies[body["touser"].(string)]; ok {
			_, _ = io.WriteString(w, reply)
			return
		}
		_, _ = io.WriteString(w, `{"errcode":0,"errmsg":"ok","msgid":1}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func wechatChannel(t *testing.T, base string, openIDs ...string) channels.Channel {
	return channels.Channel{Kind: channels.KindWeChatTemplate, Config: rawConfig(t, map[string]any{
		"app_id":      "wx123",
		"app_secret":  "appsecret",
		"template_id": "tpl-1",
		"open_ids":    openIDs,
		"api_base":    base,
	})}
}

func TestWeChatTemplateAdapter(t *testing.T) {
	t.Parallel()

	fake := &wechatFake{tokenReply: `{"access_token":"TOKEN","expires_in":7200}`}
	srv := fake.server(t)

	tokens := channels.NewMemoryTokenStore(8)
	a := channels.NewWeChatTemplateAdapter(nil, tokens,
		channels.WithWeChatClock(time.Now),
		channels.WithWeChatLocation(time.UTC),
	)
	msg := message("order_shipped", notifications.PriorityNormal)
	msg.ActionURL = "https://crm.example.com/orders/42"

	res, err := a.Send(context.Background(), wechatChannel(t, srv.URL, "o1", "o2"), msg)
	require.NoError(t, err)
	assert.Equal(t, channels.Result{Response: "delivered 2/2", Attempted: 2, Delivered: 2}, res)

	// Second send reuses the cached token.
	_, err = a.Send(context.Background(), wechatChannel(t, srv.URL, "o3"), msg)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.tokenCalls.Load())

	require.Len(t, fake.sent, 3)
	first := fake.sent[0]
	assert.Equal(t, "o1", first["touser"])
	assert.Equal(t, "tpl-1", first["template_id"])
	assert.Equal(t, "https://crm.example.com/orders/42", first["url"])
	data := first["data"].(map[string]any)
	assert.Equal(t, map[string]any{"value": "Order shipped"}, data["title"])
	assert.Equal(t, map[string]any{"value": "Order #42 left the warehouse"}, data["content"])

	tok, ok, err := tokens.Get(context.Background(), "wechat:wx123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TOKEN", tok.AccessToken)
}

func TestWeChatTemplateAdapter_PartialSuccess(t *testing.T) {
	t.Parallel()

	fake := &wechatFake{
		tokenReply: `{"access_token":"TOKEN","expires_in":7200}`,
		replies:    map[string]string{"o2": `{"errcode":43004,"errmsg":"require subscribe"}`},
	}
	srv := fake.server(t)

	a := channels.NewWeChatTemplateAdapter(nil, nil)
	res, err := a.Send(context.Background(), wechatChannel(t, srv.URL, "o1", "o2", "o3"), message("x", notifications.PriorityLow))
	require.NoError(t, err)
	assert.Equal(t, "delivered 2/3", res.Response)
	assert.True(t, res.Partial())
}

func TestWeChatTemplateAdapter_AllFail(t *testing.T) {
	t.Parallel()

	fake := &wechatFake{
		tokenReply: `{"access_token":"TOKEN","expires_in":7200}`,
		replies:    map[string]string{"o1": `{"errcode":43004,"errmsg":"require subscribe"}`},
	}
	srv := fake.server(t)

	res, err := channels.NewWeChatTemplateAdapter(nil, nil).Send(context.Background(), wechatChannel(t, srv.URL, "o1"), message("x", notifications.PriorityLow))
	assert.ErrorIs(t, err, channels.ErrProviderRejected)
	assert.Equal(t, "require subscribe", err.Error())
	assert.Equal(t, "delivered 0/1", res.Response)
}

func TestWeChatTemplateAdapter_TokenFailure(t *testing.T) {
	t.Parallel()

	fake := &wechatFake{tokenReply: `{"errcode":40013,"errmsg":"invalid appid"}`}
	srv := fake.server(t)

	res, err := channels.NewWeChatTemplateAdapter(nil, nil).Send(context.Background(), wechatChannel(t, srv.URL, "o1", "o2"), message("x", notifications.PriorityLow))
	assert.ErrorIs(t, err, channels.ErrProviderRejected)
	assert.Contains(t, err.Error(), "invalid appid")
	assert.Equal(t, 0, res.Delivered)
	assert.Empty(t, fake.sent)
}

func TestWeChatTemplateAdapter_ExpiredTokenIsDropped(t *testing.T) {
	t.Parallel()

	fake := &wechatFake{
		tokenReply: `{"access_token":"TOKEN","expires_in":7200}`,
		replies:    map[string]string{"o1": `{"errcode":42001,"errmsg":"access_token expired"}`},
	}
	srv := fake.server(t)

	tokens := channels.NewMemoryTokenStore(8)
	_, err := channels.NewWeChatTemplateAdapter(nil, tokens).Send(context.Background(), wechatChannel(t, srv.URL, "o1", "o2"), message("x", notifications.PriorityLow))
	assert.ErrorIs(t, err, channels.ErrProviderRejected)
	assert.Len(t, fake.sent, 1)

	_, ok, _ := tokens.Get(context.Background(), "wechat:wx123")
	assert.False(t, ok)
}

func TestWeChatTemplateAdapter_MissingConfig(t *testing.T) {
	t.Parallel()

	_, err := channels.NewWeChatTemplateAdapter(nil, nil).Send(context.Background(),
		channels.Channel{Kind: channels.KindWeChatTemplate, Config: json.RawMessage(`{"app_id":"wx"}`)}, message("x", notifications.PriorityLow))
	assert.ErrorIs(t, err, channels.ErrMissingConfig)
}

func TestMemoryTokenStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := channels.NewMemoryTokenStore(2)
	require.NoError(t, s.Set(ctx, "a", &oauth2.Token{AccessToken: "A", Expiry: time.Now().Add(time.Hour)}))
	require.NoError(t, s.Set(ctx, "expired", &oauth2.Token{AccessToken: "E", Expiry: time.Now().Add(-time.Minute)}))

	tok, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", tok.AccessToken)

	_, ok, _ = s.Get(ctx, "expired")
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, "a"))
	_, ok, _ = s.Get(ctx, "a")
	assert.False(t, ok)
}
