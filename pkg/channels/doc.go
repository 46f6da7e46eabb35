// Package channels delivers notifications to external providers.
//
// A Channel is one configured destination: its Kind selects the provider
// protocol, Config holds the provider credentials as JSON, and the
// MessageTypes / PriorityFloor fields decide which messages it accepts.
// Every Kind has exactly one Adapter; a Registry maps kinds to adapters.
//
// Supported kinds:
//
//   - dingtalk, wecom: chat-bot webhooks (DingTalk URLs may be HMAC signed)
//   - email: HTML envelope over SMTP (go-mail) or Postmark
//   - aliyun_sms: query-string signed SMS API
//   - tencent_sms: TC3-HMAC-SHA256 header signed SMS API
//   - wechat_template: official-account template messages with a cached
//     access token
//
// Adapters validate Config before any I/O and fail with ErrMissingConfig
// when a required field is absent. Other failures wrap ErrTransport or
// ErrProviderRejected; a *ProviderError keeps the provider's own text. An
// adapter that reaches several targets returns a nil error when at least one
// succeeded and reports the ratio in Result.
//
// Nothing here retries. All HTTP goes through pkg/webhook with a bounded
// timeout.
//
//	reg := channels.NewRegistry(
//	    channels.NewDingTalkAdapter(sender),
//	    channels.NewEmailAdapter(nil),
//	)
//	res, err := reg.Send(ctx, ch, msg)
package channels
