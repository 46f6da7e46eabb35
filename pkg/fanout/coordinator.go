package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/deliverylog"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
	"github.com/dmitrymomot/notifykit/pkg/recipients"
)

// DefaultDispatchTimeout bounds a single adapter call.
const DefaultDispatchTimeout = 15 * time.Second

// Resolver turns targeting into user ids. *recipients.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, t recipients.Targeting) ([]string, error)
}

// Pusher delivers encoded frames to live connections. *realtime.Registry
// implements it.
type Pusher interface {
	PublishUser(userID string, frame []byte) int
	PublishAll(frame []byte) int
}

// ChannelLister returns the channels eligible for dispatch. channels.Store
// implementations satisfy it.
type ChannelLister interface {
	ListEnabled(ctx context.Context) ([]channels.Channel, error)
}

// Sender delivers to one channel. *channels.Registry implements it.
type Sender interface {
	Send(ctx context.Context, ch channels.Channel, msg notifications.Message) (channels.Result, error)
}

// Recorder appends one audit entry per attempt. *deliverylog.Logger
// implements it.
type Recorder interface {
	Record(ctx context.Context, ch channels.Channel, msg notifications.Message, res channels.Result, sendErr error) (deliverylog.Entry, error)
}

// Deps are the collaborators of a Coordinator. Resolver and Storage are
// required. Channels, Sender and Audit go together: without Channels no
// external dispatch happens. Pusher may be nil.
type Deps struct {
	Resolver Resolver
	Storage  notifications.Storage
	Pusher   Pusher
	Channels ChannelLister
	Sender   Sender
	Audit    Recorder
}

// Coordinator turns a Request into one stored message, live pushes and
// external channel deliveries.
type Coordinator struct {
	deps      Deps
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
	onNotify  []func(*Summary)
	onOutcome []func(Outcome)

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

type Option func(*Coordinator)

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDispatchTimeout bounds each adapter call. Non-positive values are ignored.
func WithDispatchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithNotifyHook is called after every successful Notify, before channel
// dispatch completes.
func WithNotifyHook(fn func(*Summary)) Option {
	return func(c *Coordinator) { c.onNotify = append(c.onNotify, fn) }
}

// WithOutcomeHook is called once per channel attempt after it is recorded.
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(c *Coordinator) { c.onOutcome = append(c.onOutcome, fn) }
}

func New(deps Deps, opts ...Option) (*Coordinator, error) {
	switch {
	case deps.Resolver == nil:
		return nil, fmt.Errorf("%w: resolver", ErrMissingDependency)
	case deps.Storage == nil:
		return nil, fmt.Errorf("%w: storage", ErrMissingDependency)
	case deps.Channels != nil && deps.Sender == nil:
		return nil, fmt.Errorf("%w: sender", ErrMissingDependency)
	case deps.Channels != nil && deps.Audit == nil:
		return nil, fmt.Errorf("%w: audit", ErrMissingDependency)
	}

	c := &Coordinator{
		deps:    deps,
		timeout: DefaultDispatchTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Notify resolves recipients, stores one message for all of them, pushes it
// to connected users and starts external dispatch in the background.
//
// Only invalid requests, resolver failures and storage failures are
// returned. Channel dispatch is detached from ctx and never fails Notify.
// A resolution that yields nobody still dispatches to channels.
func (c *Coordinator) Notify(ctx context.Context, req Request) (*Summary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ids, err := c.deps.Resolver.Resolve(ctx, req.Targeting)
	if err != nil {
		return nil, errors.Join(ErrResolve, err)
	}

	msg := req.message(uuid.NewString(), ids, c.now())
	sum := newSummary(msg.ID, msg.Type)
	sum.Recipients = ids
	sum.Broadcast = req.Targeting.IsBroadcast()

	if !c.begin() {
		return nil, ErrClosed
	}
	go func() {
		defer c.inflight.Done()
		c.dispatch(context.WithoutCancel(ctx), msg, sum)
	}()

	if len(ids) == 0 && !sum.Broadcast {
		c.logger.LogAttrs(ctx, slog.LevelInfo, "no recipients resolved",
			logger.Component("fanout"),
			logger.MessageID(msg.ID),
			logger.MessageType(msg.Type),
		)
		c.notified(sum)
		return sum, nil
	}

	if err := c.deps.Storage.Create(ctx, msg); err != nil {
		return nil, errors.Join(ErrPersist, fmt.Errorf("message %s: %w", msg.ID, err))
	}
	sum.Persisted = true

	if err := c.push(msg, sum); err != nil {
		return nil, err
	}

	c.logger.LogAttrs(ctx, slog.LevelInfo, "notification stored",
		logger.Component("fanout"),
		logger.MessageID(msg.ID),
		logger.MessageType(msg.Type),
		logger.Count("recipients", len(ids)),
		logger.Count("pushed", sum.Pushed),
	)
	c.notified(sum)
	return sum, nil
}

// push is best effort: offline users get the message from storage later.
func (c *Coordinator) push(msg notifications.Message, sum *Summary) error {
	if c.deps.Pusher == nil {
		return nil
	}
	frame, err := realtime.Encode(realtime.EventNewMessage, realtime.NewMessageFrom(msg))
	if err != nil {
		return err
	}
	if sum.Broadcast {
		sum.PushAttempts = 1
		sum.Pushed = c.deps.Pusher.PublishAll(frame)
		return nil
	}
	for _, id := range msg.Recipients {
		sum.PushAttempts++
		sum.Pushed += c.deps.Pusher.PublishUser(id, frame)
	}
	return nil
}

func (c *Coordinator) notified(sum *Summary) {
	for _, fn := range c.onNotify {
		fn(sum)
	}
}

func (c *Coordinator) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.inflight.Add(1)
	return true
}

// Shutdown rejects new requests and waits for running dispatches, or for ctx.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
