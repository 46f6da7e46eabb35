package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

const messageColumns = `m.id, m.type, m.title, m.body, m.priority, m.category, m.recipients,
	m.origin_id, m.origin_type, m.action_url, m.created_by, m.created_at, r.read_at`

// visibleTo matches messages addressed to the user in $1 or to everyone.
const visibleTo = `(cardinality(m.recipients) = 0 OR $1 = ANY(m.recipients))`

const fromMessages = ` FROM notification_messages m
	LEFT JOIN notification_reads r ON r.message_id = m.id AND r.user_id = $1`

// MessageStorage keeps each message as one row with a recipients array and
// read state in a separate table keyed by (message, user).
type MessageStorage struct {
	db  DB
	now func() time.Time
}

var _ notifications.Storage = (*MessageStorage)(nil)

func NewMessageStorage(db DB) *MessageStorage {
	return &MessageStorage{db: db, now: time.Now}
}

func (s *MessageStorage) Create(ctx context.Context, msg notifications.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	var originID, originType *string
	if msg.Origin != nil {
		originID, originType = &msg.Origin.ID, &msg.Origin.Type
	}

	_, err := s.db.Exec(ctx, `INSERT INTO notification_messages
		(id, type, title, body, priority, category, recipients, origin_id, origin_type, action_url, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		msg.ID, msg.Type, msg.Title, msg.Body, int16(msg.Priority), msg.Category,
		nonNil(notifications.Dedupe(msg.Recipients)), originID, originType,
		msg.ActionURL, msg.CreatedBy, msg.CreatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: duplicate id %q", notifications.ErrInvalidMessage, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *MessageStorage) Get(ctx context.Context, userID, messageID string) (*notifications.Item, error) {
	row := s.db.QueryRow(ctx, `SELECT `+messageColumns+fromMessages+
		` WHERE m.id = $2 AND `+visibleTo, userID, messageID)
	item, err := scanItem(row)
	if pg.IsNotFoundError(err) {
		return nil, notifications.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &item, nil
}

func (s *MessageStorage) List(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.Item, error) {
	f := &filter{args: []any{userID}, conds: []string{visibleTo}}
	if opts.OnlyUnread {
		f.conds = append(f.conds, "r.read_at IS NULL")
	}
	if len(opts.Types) > 0 {
		f.where("m.type = ANY(?)", opts.Types)
	}
	if opts.Since != nil {
		f.where("m.created_at >= ?", *opts.Since)
	}
	sql := `SELECT ` + messageColumns + fromMessages + f.clause() +
		` ORDER BY m.created_at DESC, m.id` + f.page(opts.Limit, opts.Offset)

	rows, err := s.db.Query(ctx, sql, f.args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := []notifications.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *MessageStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*)`+fromMessages+
		` WHERE `+visibleTo+` AND r.read_at IS NULL`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead keeps the first read timestamp. It reports ErrNotFound when the
// message does not exist or is not visible to the user.
func (s *MessageStorage) MarkRead(ctx context.Context, userID, messageID string) error {
	var visible int
	err := s.db.QueryRow(ctx, `WITH m AS (
			SELECT id FROM notification_messages m WHERE m.id = $2 AND `+visibleTo+`
		), ins AS (
			INSERT INTO notification_reads (message_id, user_id, read_at)
			SELECT id, $1::text, $3::timestamptz FROM m
			ON CONFLICT (message_id, user_id) DO NOTHING
		)
		SELECT count(*) FROM m`, userID, messageID, s.now()).Scan(&visible)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if visible == 0 {
		return notifications.ErrNotFound
	}
	return nil
}

// MarkAllRead runs as one statement, so messages created while it runs stay
// unread.
func (s *MessageStorage) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := s.db.Exec(ctx, `INSERT INTO notification_reads (message_id, user_id, read_at)
		SELECT m.id, $1::text, $2::timestamptz FROM notification_messages m WHERE `+visibleTo+`
		ON CONFLICT (message_id, user_id) DO NOTHING`, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *MessageStorage) Delete(ctx context.Context, messageID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notification_messages WHERE id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (notifications.Item, error) {
	var (
		item       notifications.Item
		priority   int16
		originID   *string
		originType *string
		readAt     *time.Time
	)
	err := row.Scan(
		&item.ID, &item.Type, &item.Title, &item.Body, &priority, &item.Category,
		&item.Recipients, &originID, &originType, &item.ActionURL, &item.CreatedBy,
		&item.CreatedAt, &readAt,
	)
	if err != nil {
		return notifications.Item{}, err
	}
	item.Priority = notifications.Priority(priority)
	if originID != nil && *originID != "" {
		item.Origin = &notifications.Origin{ID: *originID}
		if originType != nil {
			item.Origin.Type = *originType
		}
	}
	if readAt != nil {
		item.Read = true
		item.ReadAt = readAt
	}
	return item, nil
}
