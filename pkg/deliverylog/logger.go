package deliverylog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Logger turns adapter outcomes into entries. It holds no delivery logic.
type Logger struct {
	storage  Storage
	redactor *Redactor
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*Logger)

func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

func WithRedactor(r *Redactor) Option {
	return func(l *Logger) {
		if r != nil {
			l.redactor = r
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Logger) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLogger panics on a nil storage.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("deliverylog: storage cannot be nil")
	}
	l := &Logger{
		storage:  storage,
		redactor: NewRedactor(),
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Entry builds the entry for one attempt: a nil sendErr is success, anything
// else failed. Credentials in the response or error text are masked.
func (l *Logger) Entry(ch channels.Channel, msg notifications.Message, res channels.Result, sendErr error) Entry {
	e := Entry{
		ID:          uuid.NewString(),
		ChannelID:   ch.ID,
		ChannelKind: string(ch.Kind),
		ChannelName: ch.Name,
		MessageID:   msg.ID,
		MessageType: msg.Type,
		Title:       msg.Title,
		Body:        msg.Body,
		Status:      StatusSuccess,
		Response:    l.redactor.Redact(res.Response),
		SentAt:      l.now(),
	}
	if sendErr != nil {
		e.Status = StatusFailed
		e.Error = l.redactor.Redact(sendErr.Error())
	}
	return e
}

// Record builds and appends the entry for one attempt.
func (l *Logger) Record(ctx context.Context, ch channels.Channel, msg notifications.Message, res channels.Result, sendErr error) (Entry, error) {
	e := l.Entry(ch, msg, res, sendErr)
	if err := l.storage.Append(ctx, e); err != nil {
		l.log.LogAttrs(ctx, slog.LevelError, "delivery log append failed",
			logger.Component("deliverylog"),
			logger.ChannelID(ch.ID),
			logger.MessageID(msg.ID),
			logger.Error(err),
		)
		return e, err
	}
	return e, nil
}

// Query reads entries back for the operator view.
func (l *Logger) Query(ctx context.Context, c Criteria) ([]Entry, error) {
	return l.storage.Query(ctx, c)
}
