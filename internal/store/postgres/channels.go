package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

const channelColumns = `id, name, kind, enabled, config, message_types, scope, scope_ids,
	priority_floor, created_by, created_at, updated_at`

// ChannelStore persists channel configurations. Wrap it with
// channels.NewSealedStore to keep credentials encrypted at rest.
type ChannelStore struct {
	db  DB
	now func() time.Time
}

var _ channels.Store = (*ChannelStore)(nil)

func NewChannelStore(db DB) *ChannelStore {
	return &ChannelStore{db: db, now: time.Now}
}

func (s *ChannelStore) ListEnabled(ctx context.Context) ([]channels.Channel, error) {
	return s.list(ctx, `SELECT `+channelColumns+` FROM notification_channels WHERE enabled ORDER BY created_at, id`)
}

func (s *ChannelStore) List(ctx context.Context) ([]channels.Channel, error) {
	return s.list(ctx, `SELECT `+channelColumns+` FROM notification_channels ORDER BY created_at, id`)
}

func (s *ChannelStore) Get(ctx context.Context, id string) (channels.Channel, error) {
	ch, err := scanChannel(s.db.QueryRow(ctx, `SELECT `+channelColumns+` FROM notification_channels WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return channels.Channel{}, fmt.Errorf("%w: %s", channels.ErrChannelNotFound, id)
	}
	if err != nil {
		return channels.Channel{}, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

// Save inserts or updates ch. Creation metadata of an existing row is kept.
func (s *ChannelStore) Save(ctx context.Context, ch channels.Channel) (channels.Channel, error) {
	if err := ch.Validate(); err != nil {
		return channels.Channel{}, err
	}
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	now := s.now()
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = now
	}
	ch.UpdatedAt = now

	var config []byte
	if len(ch.Config) > 0 {
		config = []byte(ch.Config)
	}

	err := s.db.QueryRow(ctx, `INSERT INTO notification_channels (`+channelColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			enabled = EXCLUDED.enabled,
			config = EXCLUDED.config,
			message_types = EXCLUDED.message_types,
			scope = EXCLUDED.scope,
			scope_ids = EXCLUDED.scope_ids,
			priority_floor = EXCLUDED.priority_floor,
			updated_at = EXCLUDED.updated_at
		RETURNING created_by, created_at`,
		ch.ID, ch.Name, string(ch.Kind), ch.Enabled, config, nonNil(ch.MessageTypes),
		string(ch.Scope), nonNil(ch.ScopeIDs), string(ch.PriorityFloor),
		ch.CreatedBy, ch.CreatedAt, ch.UpdatedAt,
	).Scan(&ch.CreatedBy, &ch.CreatedAt)
	if err != nil {
		return channels.Channel{}, fmt.Errorf("save channel: %w", err)
	}
	return ch, nil
}

func (s *ChannelStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notification_channels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", channels.ErrChannelNotFound, id)
	}
	return nil
}

func (s *ChannelStore) list(ctx context.Context, sql string, args ...any) ([]channels.Channel, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var out []channels.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func scanChannel(row pgx.Row) (channels.Channel, error) {
	var (
		ch                 channels.Channel
		kind, scope, floor string
		config             []byte
	)
	err := row.Scan(&ch.ID, &ch.Name, &kind, &ch.Enabled, &config, &ch.MessageTypes,
		&scope, &ch.ScopeIDs, &floor, &ch.CreatedBy, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return channels.Channel{}, err
	}
	ch.Kind = channels.Kind(kind)
	ch.Scope = channels.Scope(scope)
	ch.PriorityFloor = channels.PriorityFloor(floor)
	ch.Config = config
	return ch, nil
}
