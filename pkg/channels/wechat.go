package channels

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

const (
	wechatDefaultAPIBase = "https://api.weixin.qq.com"
	// wechatExpiryMargin is subtracted from expires_in so a cached token is
	// refreshed before the platform rejects it.
	wechatExpiryMargin = 5 * time.Minute
)

// WeChat error codes meaning the access token is no longer usable.
var wechatTokenErrors = map[int]bool{40001: true, 40014: true, 42001: true}

type wechatConfig struct {
	AppID      string     `json:"app_id"`
	AppSecret  string     `json:"app_secret"`
	TemplateID string     `json:"template_id"`
	OpenIDs    stringList `json:"open_ids"`
	URL        string     `json:"url"`
	APIBase    string     `json:"api_base"`
}

func (c wechatConfig) validate() error {
	switch {
	case c.AppID == "":
		return missing(KindWeChatTemplate, "app_id")
	case c.AppSecret == "":
		return missing(KindWeChatTemplate, "app_secret")
	case c.TemplateID == "":
		return missing(KindWeChatTemplate, "template_id")
	case len(c.OpenIDs) == 0:
		return missing(KindWeChatTemplate, "open_ids")
	}
	return nil
}

type wechatTokenReply struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

type wechatSendReply struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	MsgID   int64  `json:"msgid"`
}

type wechatValue struct {
	Value string `json:"value"`
}

type wechatTemplateMessage struct {
	ToUser     string                 `json:"touser"`
	TemplateID string                 `json:"template_id"`
	URL        string                 `json:"url,omitempty"`
	Data       map[string]wechatValue `json:"data"`
}

// WeChatOption configures the template-message adapter.
type WeChatOption func(*wechatAdapter)

func WithWeChatClock(now func() time.Time) WeChatOption {
	return func(a *wechatAdapter) { a.now = now }
}

// WithWeChatLocation sets the zone used for the "time" template field.
func WithWeChatLocation(loc *time.Location) WeChatOption {
	return func(a *wechatAdapter) { a.loc = loc }
}

type wechatAdapter struct {
	sender *webhook.Sender
	tokens TokenStore
	now    func() time.Time
	loc    *time.Location
}

// NewWeChatTemplateAdapter sends official-account template messages, one
// call per open id. Access tokens are cached in tokens under
// "wechat:<app id>"; a nil store gets a small in-memory one.
func NewWeChatTemplateAdapter(sender *webhook.Sender, tokens TokenStore, opts ...WeChatOption) Adapter {
	if sender == nil {
		sender = webhook.NewSender()
	}
	if tokens == nil {
		tokens = NewMemoryTokenStore(64)
	}
	a := &wechatAdapter{sender: sender, tokens: tokens, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *wechatAdapter) Kind() Kind { return KindWeChatTemplate }

func (a *wechatAdapter) Send(ctx context.Context, ch Channel, msg notifications.Message) (Result, error) {
	var cfg wechatConfig
	if err := decodeConfig(ch, &cfg); err != nil {
		return Result{}, err
	}
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = wechatDefaultAPIBase
	}

	res := Result{Attempted: len(cfg.OpenIDs)}
	src := &wechatTokenSource{ctx: ctx, adapter: a, base: base, appID: cfg.AppID, secret: cfg.AppSecret}
	tok, err := src.Token()
	if err != nil {
		return res, err
	}

	link := cfg.URL
	if link == "" {
		link = msg.ActionURL
	}
	data := map[string]wechatValue{
		"title":   {Value: msg.Title},
		"content": {Value: msg.Body},
		"time":    {Value: a.now().In(a.loc).Format("2006-01-02 15:04")},
	}

	var firstErr error
	for _, openID := range cfg.OpenIDs {
		if err := ctx.Err(); err != nil {
			if firstErr == nil {
				firstErr = transportError(err)
			}
			break
		}
		reply, err := a.sendOne(ctx, base, tok.AccessToken, wechatTemplateMessage{
			ToUser:     openID,
			TemplateID: cfg.TemplateID,
			URL:        link,
			Data:       data,
		})
		if err == nil {
			res.Delivered++
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		if reply != nil && wechatTokenErrors[reply.ErrCode] {
			// The rest would fail with the same token.
			_ = a.tokens.Delete(ctx, src.key())
			break
		}
	}

	res.Response = fmt.Sprintf("delivered %d/%d", res.Delivered, res.Attempted)
	if res.Delivered == 0 {
		return res, firstErr
	}
	return res, nil
}

func (a *wechatAdapter) sendOne(ctx context.Context, base, token string, m wechatTemplateMessage) (*wechatSendReply, error) {
	endpoint := base + "/cgi-bin/message/template/send?access_token=" + url.QueryEscape(token)
	resp, err := a.sender.Post(ctx, endpoint, m)
	var reply wechatSendReply
	if derr := decodeReply(resp, err, &reply); derr != nil {
		return nil, derr
	}
	if reply.ErrCode != 0 {
		return &reply, rejected(reply.ErrCode, reply.ErrMsg)
	}
	if err != nil {
		return &reply, transportError(err)
	}
	return &reply, nil
}

// wechatTokenSource is an oauth2.TokenSource over the client-credential
// endpoint, backed by the adapter's TokenStore.
type wechatTokenSource struct {
	ctx     context.Context
	adapter *wechatAdapter
	base    string
	appID   string
	secret  string
}

var _ oauth2.TokenSource = (*wechatTokenSource)(nil)

func (s *wechatTokenSource) key() string { return "wechat:" + s.appID }

func (s *wechatTokenSource) Token() (*oauth2.Token, error) {
	if tok, ok, err := s.adapter.tokens.Get(s.ctx, s.key()); err == nil && ok {
		return tok, nil
	}

	q := url.Values{}
	q.Set("grant_type", "client_credential")
	q.Set("appid", s.appID)
	q.Set("secret", s.secret)
	resp, err := s.adapter.sender.Get(s.ctx, s.base+"/cgi-bin/token?"+q.Encode())
	var reply wechatTokenReply
	if derr := decodeReply(resp, err, &reply); derr != nil {
		return nil, fmt.Errorf("access token: %w", derr)
	}
	if reply.ErrCode != 0 || reply.AccessToken == "" {
		return nil, rejected(reply.ErrCode, "access token: "+reply.ErrMsg)
	}
	if err != nil {
		return nil, fmt.Errorf("access token: %w", transportError(err))
	}

	ttl := time.Duration(reply.ExpiresIn) * time.Second
	if ttl > 2*wechatExpiryMargin {
		ttl -= wechatExpiryMargin
	}
	tok := &oauth2.Token{
		AccessToken: reply.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.adapter.now().Add(ttl),
	}
	// Best effort: a miss only means another fetch.
	_ = s.adapter.tokens.Set(s.ctx, s.key(), tok)
	return tok, nil
}
