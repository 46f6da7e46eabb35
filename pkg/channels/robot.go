package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

type robotConfig struct {
	WebhookURL string `json:"webhook_url"`
	Secret     string `json:"secret"`
}

type robotReply struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// RobotOption configures the bot-webhook adapters.
type RobotOption func(*robotAdapter)

// WithRobotClock fixes the signing timestamp source.
func WithRobotClock(now func() time.Time) RobotOption {
	return func(a *robotAdapter) { a.now = now }
}

// WithRobotSendOptions adds options to every outbound request.
func WithRobotSendOptions(opts ...webhook.SendOption) RobotOption {
	return func(a *robotAdapter) { a.sendOpts = append(a.sendOpts, opts...) }
}

// robotAdapter serves both chat-bot webhooks. Only DingTalk signs.
type robotAdapter struct {
	kind     Kind
	sender   *webhook.Sender
	now      func() time.Time
	sendOpts []webhook.SendOption
}

// NewDingTalkAdapter posts to a DingTalk custom robot. When the channel
// config carries a secret the URL is signed.
func NewDingTalkAdapter(sender *webhook.Sender, opts ...RobotOption) Adapter {
	return newRobot(KindDingTalk, sender, opts)
}

// NewWeComAdapter posts to a WeCom group robot.
func NewWeComAdapter(sender *webhook.Sender, opts ...RobotOption) Adapter {
	return newRobot(KindWeCom, sender, opts)
}

func newRobot(kind Kind, sender *webhook.Sender, opts []RobotOption) *robotAdapter {
	if sender == nil {
		sender = webhook.NewSender()
	}
	a := &robotAdapter{kind: kind, sender: sender, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *robotAdapter) Kind() Kind { return a.kind }

func (a *robotAdapter) Send(ctx context.Context, ch Channel, msg notifications.Message) (Result, error) {
	var cfg robotConfig
	if err := decodeConfig(ch, &cfg); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return Result{}, missing(a.kind, "webhook_url")
	}
	if err := webhook.ValidateURL(cfg.WebhookURL); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	target := cfg.WebhookURL
	if a.kind == KindDingTalk && cfg.Secret != "" {
		target = SignedDingTalkURL(cfg.WebhookURL, cfg.Secret, a.now())
	}

	var body any
	if a.kind == KindDingTalk {
		body = DingTalkPayload(msg)
	} else {
		body = WeComPayload(msg)
	}

	resp, err := a.sender.Post(ctx, target, body, a.sendOpts...)
	var reply robotReply
	if derr := decodeReply(resp, err, &reply); derr != nil {
		return Result{}, derr
	}
	res := Result{Response: string(resp.Body), Attempted: 1}
	if reply.ErrCode != 0 {
		return res, rejected(reply.ErrCode, reply.ErrMsg)
	}
	if err != nil {
		return res, transportError(err)
	}
	res.Delivered = 1
	return res, nil
}

// SignDingTalk computes the robot signature for a millisecond timestamp:
// base64(HMAC-SHA256(secret, "{ts}\n{secret}")), URL-encoded.
func SignDingTalk(secret string, tsMillis int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(tsMillis, 10) + "\n" + secret))
	return url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

// SignedDingTalkURL appends timestamp and sign query parameters.
func SignedDingTalkURL(webhookURL, secret string, at time.Time) string {
	ts := at.UnixMilli()
	sep := "&"
	if !strings.Contains(webhookURL, "?") {
		sep = "?"
	}
	return fmt.Sprintf("%s%stimestamp=%d&sign=%s", webhookURL, sep, ts, SignDingTalk(secret, ts))
}

type robotText struct {
	Content string `json:"content"`
}

type dingMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type robotPayload struct {
	MsgType  string     `json:"msgtype"`
	Text     *robotText `json:"text,omitempty"`
	Markdown any        `json:"markdown,omitempty"`
}

func structured(p notifications.Priority) bool { return p >= notifications.PriorityHigh }

func plainText(msg notifications.Message) string {
	if msg.Body == "" {
		return msg.Title
	}
	return msg.Title + "\n" + msg.Body
}

func markdownText(msg notifications.Message) string {
	return "### " + msg.Title + "\n\n" + msg.Body
}

// DingTalkPayload renders msg: markdown for high and urgent, text otherwise.
func DingTalkPayload(msg notifications.Message) any {
	if structured(msg.Priority) {
		return robotPayload{MsgType: "markdown", Markdown: dingMarkdown{Title: msg.Title, Text: markdownText(msg)}}
	}
	return robotPayload{MsgType: "text", Text: &robotText{Content: plainText(msg)}}
}

// WeComPayload renders msg like DingTalkPayload; WeCom markdown has no title.
func WeComPayload(msg notifications.Message) any {
	if structured(msg.Priority) {
		return robotPayload{MsgType: "markdown", Markdown: robotText{Content: markdownText(msg)}}
	}
	return robotPayload{MsgType: "text", Text: &robotText{Content: plainText(msg)}}
}
