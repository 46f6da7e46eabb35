package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

const (
	tencentDefaultEndpoint = "https://sms.tencentcloudapi.com"
	tencentDefaultRegion   = "ap-guangzhou"
	tencentAPIVersion      = "2021-01-11"
	tencentService         = "sms"
	tencentAlgorithm       = "TC3-HMAC-SHA256"
	tencentContentType     = "application/json; charset=utf-8"
)

type tencentConfig struct {
	SecretID     string     `json:"secret_id"`
	SecretKey    string     `json:"secret_key"`
	SdkAppID     string     `json:"sdk_app_id"`
	SignName     string     `json:"sign_name"`
	TemplateID   string     `json:"template_id"`
	PhoneNumbers stringList `json:"phone_numbers"`
	Region       string     `json:"region"`
	Endpoint     string     `json:"endpoint"`
}

func (c tencentConfig) validate() error {
	switch {
	case c.SecretID == "":
		return missing(KindTencentSMS, "secret_id")
	case c.SecretKey == "":
		return missing(KindTencentSMS, "secret_key")
	case c.SdkAppID == "":
		return missing(KindTencentSMS, "sdk_app_id")
	case c.SignName == "":
		return missing(KindTencentSMS, "sign_name")
	case c.TemplateID == "":
		return missing(KindTencentSMS, "template_id")
	case len(c.PhoneNumbers) == 0:
		return missing(KindTencentSMS, "phone_numbers")
	}
	return nil
}

type tencentRequest struct {
	PhoneNumberSet   []string `json:"PhoneNumberSet"`
	SmsSdkAppID      string   `json:"SmsSdkAppId"`
	SignName         string   `json:"SignName"`
	TemplateID       string   `json:"TemplateId"`
	TemplateParamSet []string `json:"TemplateParamSet"`
}

type tencentReply struct {
	Response struct {
		SendStatusSet []struct {
			PhoneNumber string `json:"PhoneNumber"`
			Code        string `json:"Code"`
			Message     string `json:"Message"`
		} `json:"SendStatusSet"`
		Error *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
		RequestID string `json:"RequestId"`
	} `json:"Response"`
}

type tencentAdapter struct {
	sender *webhook.Sender
	opts   smsOptions
}

// NewTencentSMSAdapter sends through the Tencent Cloud SMS v3 API with
// TC3-HMAC-SHA256 header signing.
func NewTencentSMSAdapter(sender *webhook.Sender, opts ...SMSOption) Adapter {
	if sender == nil {
		sender = webhook.NewSender()
	}
	return &tencentAdapter{sender: sender, opts: newSMSOptions(opts)}
}

func (a *tencentAdapter) Kind() Kind { return KindTencentSMS }

func (a *tencentAdapter) Send(ctx context.Context, ch Channel, msg notifications.Message) (Result, error) {
	var cfg tencentConfig
	if err := decodeConfig(ch, &cfg); err != nil {
		return Result{}, err
	}
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	phones, err := normalizePhones(KindTencentSMS, cfg.PhoneNumbers, e164)
	if err != nil {
		return Result{}, err
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tencentDefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return Result{}, fmt.Errorf("%w: tencent_sms endpoint %q", ErrInvalidConfig, endpoint)
	}
	region := cfg.Region
	if region == "" {
		region = tencentDefaultRegion
	}

	payload, err := json.Marshal(tencentRequest{
		PhoneNumberSet:   phones,
		SmsSdkAppID:      cfg.SdkAppID,
		SignName:         cfg.SignName,
		TemplateID:       cfg.TemplateID,
		TemplateParamSet: []string{SMSContent(msg.Title, msg.Body)},
	})
	if err != nil {
		return Result{}, err
	}

	now := a.opts.now()
	auth := SignTencent(cfg.SecretID, cfg.SecretKey, u.Host, payload, now)
	resp, err := a.sender.Post(ctx, endpoint, payload, webhook.WithHeaders(map[string]string{
		"Authorization":  auth,
		"Content-Type":   tencentContentType,
		"X-TC-Action":    "SendSms",
		"X-TC-Version":   tencentAPIVersion,
		"X-TC-Timestamp": strconv.FormatInt(now.Unix(), 10),
		"X-TC-Region":    region,
	}))
	var reply tencentReply
	if derr := decodeReply(resp, err, &reply); derr != nil {
		return Result{}, derr
	}

	res := Result{Response: string(resp.Body), Attempted: len(phones)}
	if e := reply.Response.Error; e != nil {
		return res, rejected(e.Code, e.Message)
	}
	if err != nil {
		return res, transportError(err)
	}
	var firstFailure *ProviderError
	for _, st := range reply.Response.SendStatusSet {
		if st.Code == "Ok" {
			res.Delivered++
			continue
		}
		if firstFailure == nil {
			firstFailure = &ProviderError{Code: st.Code, Message: st.Message}
		}
	}
	switch {
	case res.Delivered == 0 && firstFailure != nil:
		return res, firstFailure
	case res.Delivered == 0:
		return res, rejected("empty", "no send status returned")
	case res.Partial():
		res.Response = fmt.Sprintf("delivered %d/%d", res.Delivered, res.Attempted)
	}
	return res, nil
}

// SignTencent returns the Authorization header for a SendSms POST of
// payload to host at instant t. Timestamp and credential date both come from
// t in UTC.
func SignTencent(secretID, secretKey, host string, payload []byte, t time.Time) string {
	t = t.UTC()
	ts := strconv.FormatInt(t.Unix(), 10)
	date := t.Format("2006-01-02")

	canonicalRequest := "POST\n/\n\n" +
		"content-type:" + tencentContentType + "\n" +
		"host:" + host + "\n\n" +
		"content-type;host\n" +
		sha256hex(payload)
	scope := date + "/" + tencentService + "/tc3_request"
	toSign := tencentAlgorithm + "\n" + ts + "\n" + scope + "\n" + sha256hex([]byte(canonicalRequest))

	secretDate := hmacSHA256([]byte("TC3"+secretKey), date)
	secretService := hmacSHA256(secretDate, tencentService)
	secretSigning := hmacSHA256(secretService, "tc3_request")
	signature := hex.EncodeToString(hmacSHA256(secretSigning, toSign))

	return tencentAlgorithm + " Credential=" + secretID + "/" + scope +
		", SignedHeaders=content-type;host, Signature=" + signature
}

func sha256hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
