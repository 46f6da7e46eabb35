package fanout

import (
	"context"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// List returns userID's inbox, newest first.
func (c *Coordinator) List(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.Item, error) {
	return c.deps.Storage.List(ctx, userID, opts)
}

func (c *Coordinator) Get(ctx context.Context, userID, messageID string) (*notifications.Item, error) {
	return c.deps.Storage.Get(ctx, userID, messageID)
}

func (c *Coordinator) CountUnread(ctx context.Context, userID string) (int, error) {
	return c.deps.Storage.CountUnread(ctx, userID)
}

// MarkRead is idempotent.
func (c *Coordinator) MarkRead(ctx context.Context, userID, messageID string) error {
	return c.deps.Storage.MarkRead(ctx, userID, messageID)
}

func (c *Coordinator) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return c.deps.Storage.MarkAllRead(ctx, userID)
}

// Delete removes a message for every recipient.
func (c *Coordinator) Delete(ctx context.Context, messageID string) error {
	return c.deps.Storage.Delete(ctx, messageID)
}
