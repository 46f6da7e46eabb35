package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/deliverylog"
)

var deliveryLogColumns = []string{
	"id", "channel_id", "channel_kind", "channel_name", "message_id", "message_type",
	"title", "body", "status", "response", "error", "sent_at",
}

// DeliveryLogStorage appends entries with COPY, so it pairs well with
// deliverylog.AsyncWriter batches.
type DeliveryLogStorage struct {
	db DB
}

var _ deliverylog.Storage = (*DeliveryLogStorage)(nil)

func NewDeliveryLogStorage(db DB) *DeliveryLogStorage {
	return &DeliveryLogStorage{db: db}
}

func (s *DeliveryLogStorage) Append(ctx context.Context, entries ...deliverylog.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return err
		}
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
	}

	_, err := s.db.CopyFrom(ctx, pgx.Identifier{"delivery_logs"}, deliveryLogColumns,
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{
				e.ID, e.ChannelID, e.ChannelKind, e.ChannelName, e.MessageID, e.MessageType,
				e.Title, e.Body, string(e.Status), e.Response, e.Error, e.SentAt,
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("%w: %w", deliverylog.ErrStorageNotAvailable, err)
	}
	return nil
}

func (s *DeliveryLogStorage) Query(ctx context.Context, c deliverylog.Criteria) ([]deliverylog.Entry, error) {
	sql, args := deliveryLogQuery(c)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query delivery logs: %w", err)
	}
	defer rows.Close()

	out := []deliverylog.Entry{}
	for rows.Next() {
		var (
			e      deliverylog.Entry
			status string
		)
		if err := rows.Scan(&e.ID, &e.ChannelID, &e.ChannelKind, &e.ChannelName, &e.MessageID,
			&e.MessageType, &e.Title, &e.Body, &status, &e.Response, &e.Error, &e.SentAt); err != nil {
			return nil, fmt.Errorf("scan delivery log: %w", err)
		}
		e.Status = deliverylog.Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func deliveryLogQuery(c deliverylog.Criteria) (string, []any) {
	f := &filter{}
	if c.ChannelID != "" {
		f.where("channel_id = ?", c.ChannelID)
	}
	if c.MessageID != "" {
		f.where("message_id = ?", c.MessageID)
	}
	if c.Status != "" {
		f.where("status = ?", string(c.Status))
	}
	if !c.Since.IsZero() {
		f.where("sent_at >= ?", c.Since)
	}
	if !c.Until.IsZero() {
		f.where("sent_at < ?", c.Until)
	}
	sql := "SELECT " + joinColumns(deliveryLogColumns) + " FROM delivery_logs" + f.clause() +
		" ORDER BY sent_at DESC, id" + f.page(c.Limit, c.Offset)
	return sql, f.args
}
