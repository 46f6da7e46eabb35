package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	userAgent       = "notifykit/1.0"
	maxResponseBody = 64 * 1024
)

// Response is the outcome of a request that reached the endpoint.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("%w: empty response body", ErrInvalidPayload)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

// Snippet returns the body flattened to one line and truncated for logs.
func (r *Response) Snippet() string {
	s := strings.ReplaceAll(string(r.Body), "\n", " ")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// Sender issues HTTP requests to notification endpoints.
// Zero value is not usable; use NewSender to create instances.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with a pooled HTTP client.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewSenderWithClient creates a sender backed by client.
func NewSenderWithClient(client *http.Client) *Sender {
	if client == nil {
		return NewSender()
	}
	return &Sender{client: client}
}

// Post sends data as a JSON POST body. []byte and json.RawMessage are sent as-is;
// any other value is marshaled to JSON.
//
// A response outside 2xx is returned together with an ErrUnexpectedStatus error.
func (s *Sender) Post(ctx context.Context, endpoint string, data any, opts ...SendOption) (*Response, error) {
	payload, err := encodePayload(data)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	return s.do(ctx, http.MethodPost, endpoint, payload, opts)
}

// Get issues a GET request to endpoint.
func (s *Sender) Get(ctx context.Context, endpoint string, opts ...SendOption) (*Response, error) {
	return s.do(ctx, http.MethodGet, endpoint, nil, opts)
}

func encodePayload(data any) ([]byte, error) {
	switch v := data.(type) {
	case nil:
		return nil, fmt.Errorf("%w: payload cannot be nil", ErrInvalidPayload)
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return b, nil
	}
}

// ValidateURL reports whether endpoint is an absolute http(s) URL with a host.
func ValidateURL(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}

func (s *Sender) do(ctx context.Context, method, endpoint string, payload []byte, opts []SendOption) (*Response, error) {
	if err := ValidateURL(endpoint); err != nil {
		return nil, err
	}

	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}
	client := s.client
	if options.httpClient != nil {
		client = options.httpClient
	}

	resp, err := s.attempt(ctx, client, method, endpoint, payload, options)

	if options.onAttempt != nil {
		a := Attempt{Method: method, Err: err}
		if u, perr := url.Parse(endpoint); perr == nil {
			a.Host = u.Host
		}
		if resp != nil {
			a.StatusCode = resp.StatusCode
			a.Duration = resp.Duration
		}
		options.onAttempt(a)
	}

	return resp, err
}

func (s *Sender) attempt(ctx context.Context, client *http.Client, method, endpoint string, payload []byte, options *sendOptions) (*Response, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	out := &Response{
		StatusCode: resp.StatusCode,
		Body:       raw,
		Duration:   time.Since(start),
	}
	if err != nil {
		return out, fmt.Errorf("%w: reading body: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if len(raw) > 0 {
			msg += ": " + out.Snippet()
		}
		return out, fmt.Errorf("%w: %s", ErrUnexpectedStatus, msg)
	}

	return out, nil
}
