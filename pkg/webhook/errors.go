package webhook

import "errors"

// Errors are wrapped with the underlying cause; match them with errors.Is.
//   - ErrInvalidURL, ErrInvalidPayload: the request was never sent
//   - ErrTimeout, ErrRequestFailed: the request did not produce a response
//   - ErrUnexpectedStatus: the endpoint answered outside 2xx
var (
	ErrInvalidURL       = errors.New("invalid webhook URL")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrTimeout          = errors.New("webhook request timeout")
	ErrRequestFailed    = errors.New("webhook request failed")
	ErrUnexpectedStatus = errors.New("webhook returned non-2xx status")
)
