package postgres

import (
	"context"
	"embed"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifykit/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log *slog.Logger) error {
	return pg.Migrate(ctx, pool, cfg, migrations, "migrations", log)
}
