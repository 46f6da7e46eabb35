package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyConnectionString    = errors.New("pg.empty_connection_string")
	ErrFailedToParseDBConfig    = errors.New("pg.invalid_config")
	ErrFailedToOpenDBConnection = errors.New("pg.connect_failed")
	ErrHealthcheckFailed        = errors.New("pg.healthcheck_failed")
	ErrFailedToApplyMigrations  = errors.New("pg.migrate_failed")
)

func IsNotFoundError(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// IsDuplicateKeyError detects unique constraint violations (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

const pgUniqueViolation = "23505"
