// Package webhook performs single-attempt HTTP calls to third-party
// notification endpoints such as chat robots and cloud SMS gateways.
//
// The Sender validates the target URL (http and https only), applies a
// per-request timeout layered on top of the caller's context, and returns the
// status code and a size-limited copy of the response body so that callers can
// interpret provider-specific result envelopes. Requests are never retried:
// a notification that failed to deliver is reported, not re-sent.
//
//	s := webhook.NewSender()
//	resp, err := s.Post(ctx, robotURL, payload, webhook.WithTimeout(5*time.Second))
//	if err != nil {
//	    return err
//	}
//	var out struct {
//	    ErrCode int    `json:"errcode"`
//	    ErrMsg  string `json:"errmsg"`
//	}
//	if err := resp.DecodeJSON(&out); err != nil {
//	    return err
//	}
package webhook
