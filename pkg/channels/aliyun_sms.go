package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

const (
	aliyunDefaultEndpoint = "https://dysmsapi.aliyuncs.com/"
	aliyunDefaultRegion   = "cn-hangzhou"
	aliyunAPIVersion      = "2017-05-25"
)

type aliyunConfig struct {
	AccessKeyID     string     `json:"access_key_id"`
	AccessKeySecret string     `json:"access_key_secret"`
	SignName        string     `json:"sign_name"`
	TemplateCode    string     `json:"template_code"`
	PhoneNumbers    stringList `json:"phone_numbers"`
	RegionID        string     `json:"region_id"`
	Endpoint        string     `json:"endpoint"`
}

func (c aliyunConfig) validate() error {
	switch {
	case c.AccessKeyID == "":
		return missing(KindAliyunSMS, "access_key_id")
	case c.AccessKeySecret == "":
		return missing(KindAliyunSMS, "access_key_secret")
	case c.SignName == "":
		return missing(KindAliyunSMS, "sign_name")
	case c.TemplateCode == "":
		return missing(KindAliyunSMS, "template_code")
	case len(c.PhoneNumbers) == 0:
		return missing(KindAliyunSMS, "phone_numbers")
	}
	return nil
}

type aliyunReply struct {
	Code      string `json:"Code"`
	Message   string `json:"Message"`
	BizID     string `json:"BizId"`
	RequestID string `json:"RequestId"`
}

// SMSOption configures the SMS adapters.
type SMSOption func(*smsOptions)

type smsOptions struct {
	now   func() time.Time
	nonce func() string
}

// WithSMSClock fixes the request timestamp source.
func WithSMSClock(now func() time.Time) SMSOption {
	return func(o *smsOptions) { o.now = now }
}

// WithSMSNonce fixes the signature nonce source.
func WithSMSNonce(nonce func() string) SMSOption {
	return func(o *smsOptions) { o.nonce = nonce }
}

func newSMSOptions(opts []SMSOption) smsOptions {
	o := smsOptions{now: time.Now, nonce: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type aliyunAdapter struct {
	sender *webhook.Sender
	opts   smsOptions
}

// NewAliyunSMSAdapter sends through the Aliyun short message RPC API, signed
// in the query string.
func NewAliyunSMSAdapter(sender *webhook.Sender, opts ...SMSOption) Adapter {
	if sender == nil {
		sender = webhook.NewSender()
	}
	return &aliyunAdapter{sender: sender, opts: newSMSOptions(opts)}
}

func (a *aliyunAdapter) Kind() Kind { return KindAliyunSMS }

func (a *aliyunAdapter) Send(ctx context.Context, ch Channel, msg notifications.Message) (Result, error) {
	var cfg aliyunConfig
	if err := decodeConfig(ch, &cfg); err != nil {
		return Result{}, err
	}
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	phones, err := normalizePhones(KindAliyunSMS, cfg.PhoneNumbers, domesticOrInternational)
	if err != nil {
		return Result{}, err
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = aliyunDefaultEndpoint
	}
	region := cfg.RegionID
	if region == "" {
		region = aliyunDefaultRegion
	}

	param, err := json.Marshal(map[string]string{
		"content": SMSContent(msg.Title, msg.Body),
	})
	if err != nil {
		return Result{}, err
	}
	params := map[string]string{
		"AccessKeyId":      cfg.AccessKeyID,
		"Action":           "SendSms",
		"Format":           "JSON",
		"PhoneNumbers":     strings.Join(phones, ","),
		"RegionId":         region,
		"SignName":         cfg.SignName,
		"SignatureMethod":  "HMAC-SHA1",
		"SignatureNonce":   a.opts.nonce(),
		"SignatureVersion": "1.0",
		"TemplateCode":     cfg.TemplateCode,
		"TemplateParam":    string(param),
		"Timestamp":        a.opts.now().UTC().Format("2006-01-02T15:04:05Z"),
		"Version":          aliyunAPIVersion,
	}
	canonical, signature := SignAliyun(params, cfg.AccessKeySecret)
	target := endpoint + "?Signature=" + aliyunEncode(signature) + "&" + canonical

	resp, err := a.sender.Get(ctx, target)
	var reply aliyunReply
	if derr := decodeReply(resp, err, &reply); derr != nil {
		return Result{}, derr
	}
	res := Result{Response: string(resp.Body), Attempted: len(phones)}
	if reply.Code != "OK" {
		return res, rejected(reply.Code, reply.Message)
	}
	res.Delivered = len(phones)
	return res, nil
}

// SignAliyun builds the canonical query string of params and signs
// "GET&%2F&" + enc(canonical) with HMAC-SHA1 keyed by secret + "&".
// The returned signature is base64 and not yet URL-encoded.
func SignAliyun(params map[string]string, secret string) (canonical, signature string) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, aliyunEncode(k)+"="+aliyunEncode(params[k]))
	}
	canonical = strings.Join(pairs, "&")

	toSign := "GET&" + aliyunEncode("/") + "&" + aliyunEncode(canonical)
	mac := hmac.New(sha1.New, []byte(secret+"&"))
	mac.Write([]byte(toSign))
	return canonical, base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// aliyunEncode is RFC 3986 percent-encoding as the API expects it.
func aliyunEncode(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")
	e = strings.ReplaceAll(e, "*", "%2A")
	e = strings.ReplaceAll(e, "%7E", "~")
	return e
}
