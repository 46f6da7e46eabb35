package webhook

import (
	"net/http"
	"time"
)

// Attempt describes a finished request.
type Attempt struct {
	Method     string
	Host       string
	StatusCode int
	Duration   time.Duration
	Err        error
}

// AttemptHook is called after every request, successful or not.
type AttemptHook func(Attempt)

type sendOptions struct {
	timeout    time.Duration
	headers    map[string]string
	httpClient *http.Client
	onAttempt  AttemptHook
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout: 10 * time.Second,
		headers: make(map[string]string),
	}
}

// SendOption is a functional option for configuring a request.
type SendOption func(*sendOptions)

// WithTimeout sets the request timeout. Default is 10 seconds.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a request header. Content-Type is set automatically for POST.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

// WithHeaders adds multiple request headers.
func WithHeaders(headers map[string]string) SendOption {
	return func(o *sendOptions) {
		for k, v := range headers {
			if k != "" && v != "" {
				o.headers[k] = v
			}
		}
	}
}

// WithHTTPClient overrides the sender's client for a single request.
func WithHTTPClient(client *http.Client) SendOption {
	return func(o *sendOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithOnAttempt registers a hook invoked after the request completes.
func WithOnAttempt(hook AttemptHook) SendOption {
	return func(o *sendOptions) {
		o.onAttempt = hook
	}
}
