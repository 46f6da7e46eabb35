package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

// Result describes a finished delivery. Response is the raw provider answer,
// or "delivered n/m" for adapters that address several targets.
type Result struct {
	Response  string
	Attempted int
	Delivered int
}

// Partial reports whether some but not all targets were reached.
func (r Result) Partial() bool { return r.Delivered > 0 && r.Delivered < r.Attempted }

// Adapter delivers a message over one provider protocol. Send must validate
// ch.Config before doing any I/O and return ErrMissingConfig for an absent
// required field. A nil error with Delivered < Attempted is a partial success.
type Adapter interface {
	Kind() Kind
	Send(ctx context.Context, ch Channel, msg notifications.Message) (Result, error)
}

// Registry routes a channel to the adapter registered for its kind.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Kind]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Kind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.Kind().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Kind()] = a
}

func (r *Registry) Adapter(k Kind) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[k]
	return a, ok
}

// Send dispatches msg to ch. It does not check ch.Accepts.
func (r *Registry) Send(ctx context.Context, ch Channel, msg notifications.Message) (Result, error) {
	a, ok := r.Adapter(ch.Kind)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, ch.Kind)
	}
	return a.Send(ctx, ch, msg)
}

// stringList decodes either a JSON string (comma separated) or an array of
// strings.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*l = splitList(one)
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = splitList(strings.Join(many, ","))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func decodeConfig(ch Channel, v any) error {
	if len(ch.Config) == 0 {
		return fmt.Errorf("%w: %s channel %q has no config", ErrMissingConfig, ch.Kind, ch.Name)
	}
	if err := json.Unmarshal(ch.Config, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, ch.Kind, err)
	}
	return nil
}

// transportError maps a webhook failure to ErrTransport, keeping its text.
func transportError(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// decodeReply reads a JSON reply. Non-2xx responses without a decodable body
// are transport errors.
func decodeReply(resp *webhook.Response, sendErr error, v any) error {
	if resp == nil {
		return transportError(sendErr)
	}
	if err := resp.DecodeJSON(v); err != nil {
		if sendErr != nil {
			return transportError(fmt.Errorf("%w: %s", sendErr, resp.Snippet()))
		}
		return transportError(err)
	}
	return nil
}
