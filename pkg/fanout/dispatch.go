package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/async"
	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
)

// dispatch sends msg to every enabled channel that accepts it, in parallel,
// and records each attempt. It is the only place where delivery errors stop:
// they end up in the audit log, the operator status event and the logs,
// never in the caller's return value.
func (c *Coordinator) dispatch(ctx context.Context, msg notifications.Message, sum *Summary) {
	if c.deps.Channels == nil {
		sum.finish(nil)
		return
	}

	all, err := c.deps.Channels.ListEnabled(ctx)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "list channels failed",
			logger.Component("fanout"),
			logger.MessageID(msg.ID),
			logger.Error(err),
		)
		sum.finish(nil)
		return
	}

	targets := make([]channels.Channel, 0, len(all))
	for _, ch := range all {
		if ch.Accepts(msg) {
			targets = append(targets, ch)
		}
	}

	futures := make([]*async.Future[Outcome], len(targets))
	recorded := make([]bool, len(targets))
	for i, ch := range targets {
		futures[i] = async.Async(ctx, ch, func(ctx context.Context, ch channels.Channel) (Outcome, error) {
			o := c.attempt(ctx, ch, msg)
			recorded[i] = true
			c.announce(ctx, msg, o)
			return o, o.Err
		})
	}

	settled := async.Settle(futures...)
	outcomes := make([]Outcome, len(settled))
	failed := 0
	for i, s := range settled {
		o := s.Value
		if errors.Is(s.Err, async.ErrPanic) && !recorded[i] {
			o = c.record(ctx, targets[i], msg, channels.Result{}, s.Err, 0)
			c.announce(ctx, msg, o)
		}
		outcomes[i] = o
		if o.Err != nil {
			failed++
			c.logger.LogAttrs(ctx, slog.LevelWarn, "channel delivery failed",
				logger.Component("fanout"),
				logger.MessageID(msg.ID),
				logger.ChannelID(o.Channel.ID),
				logger.ChannelKind(string(o.Channel.Kind)),
				logger.Error(o.Err),
			)
		}
	}

	c.logger.LogAttrs(ctx, slog.LevelInfo, "channel dispatch finished",
		logger.Component("fanout"),
		logger.MessageID(msg.ID),
		logger.Count("enabled", len(all)),
		logger.Count("attempted", len(targets)),
		logger.Count("failed", failed),
	)
	sum.finish(outcomes)
}

// attempt runs one adapter call under the dispatch timeout and records it.
func (c *Coordinator) attempt(ctx context.Context, ch channels.Channel, msg notifications.Message) Outcome {
	start := time.Now()
	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	res, err := c.deps.Sender.Send(sendCtx, ch, msg)
	cancel()
	return c.record(ctx, ch, msg, res, err, time.Since(start))
}

// record writes the audit entry for one attempt.
func (c *Coordinator) record(ctx context.Context, ch channels.Channel, msg notifications.Message, res channels.Result, sendErr error, took time.Duration) Outcome {
	o := Outcome{Channel: ch, Result: res, Err: sendErr, Duration: took}
	// Record logs its own append failures.
	o.Entry, _ = c.deps.Audit.Record(ctx, ch, msg, res, sendErr)
	return o
}

// announce reports a recorded outcome to the operator and the outcome hooks.
// A panic here is logged and does not change the outcome.
func (c *Coordinator) announce(ctx context.Context, msg notifications.Message, o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "outcome hook panicked",
				logger.Component("fanout"),
				logger.MessageID(msg.ID),
				logger.ChannelID(o.Channel.ID),
				logger.Error(fmt.Errorf("%w: %v", async.ErrPanic, r)),
			)
		}
	}()
	c.reportStatus(msg.CreatedBy, o)
	for _, fn := range c.onOutcome {
		fn(o)
	}
}

// reportStatus tells the operator who triggered the notification how one
// channel did.
func (c *Coordinator) reportStatus(operator string, o Outcome) {
	if operator == "" || c.deps.Pusher == nil {
		return
	}
	text := o.Entry.Response
	if !o.OK() {
		text = o.Entry.Error
	}
	frame, err := realtime.Encode(realtime.EventNotificationStatus, realtime.NotificationStatus{
		ChannelType: string(o.Channel.Kind),
		ChannelName: o.Channel.Name,
		Success:     o.OK(),
		Message:     text,
	})
	if err != nil {
		return
	}
	c.deps.Pusher.PublishUser(operator, frame)
}
