package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/recipients"
)

// AccountsConfig maps the recipient model onto an existing users table.
// Status may be of any type; it is read as text and recipients.ParseActive
// interprets it.
type AccountsConfig struct {
	Table            string `env:"ACCOUNTS_TABLE" envDefault:"users"`
	IDColumn         string `env:"ACCOUNTS_ID_COLUMN" envDefault:"id"`
	RoleColumn       string `env:"ACCOUNTS_ROLE_COLUMN" envDefault:"role"`
	DepartmentColumn string `env:"ACCOUNTS_DEPARTMENT_COLUMN" envDefault:"department"`
	StatusColumn     string `env:"ACCOUNTS_STATUS_COLUMN" envDefault:"status"`
}

// AccountStore reads accounts from a table owned by another system.
type AccountStore struct {
	db        DB
	id        string
	role      string
	dept      string
	selectSQL string
}

var _ recipients.AccountStore = (*AccountStore)(nil)

func NewAccountStore(db DB, cfg AccountsConfig) *AccountStore {
	table := pgx.Identifier(strings.Split(cfg.Table, ".")).Sanitize()
	id := pgx.Identifier{cfg.IDColumn}.Sanitize() + "::text"
	role := "coalesce(" + pgx.Identifier{cfg.RoleColumn}.Sanitize() + "::text, '')"
	dept := "coalesce(" + pgx.Identifier{cfg.DepartmentColumn}.Sanitize() + "::text, '')"
	status := pgx.Identifier{cfg.StatusColumn}.Sanitize() + "::text"

	return &AccountStore{
		db:        db,
		id:        id,
		role:      role,
		dept:      dept,
		selectSQL: fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s", id, role, dept, status, table),
	}
}

// ByIDs keeps the order of ids.
func (s *AccountStore) ByIDs(ctx context.Context, ids []string) ([]recipients.Account, error) {
	return s.query(ctx, s.selectSQL+" WHERE "+s.id+" = ANY($1) ORDER BY array_position($1::text[], "+s.id+")", ids)
}

func (s *AccountStore) ByRoles(ctx context.Context, roles []string) ([]recipients.Account, error) {
	return s.query(ctx, s.selectSQL+" WHERE "+s.role+" = ANY($1) ORDER BY "+s.id, roles)
}

func (s *AccountStore) ByDepartments(ctx context.Context, departments []string) ([]recipients.Account, error) {
	return s.query(ctx, s.selectSQL+" WHERE "+s.dept+" = ANY($1) ORDER BY "+s.id, departments)
}

func (s *AccountStore) All(ctx context.Context) ([]recipients.Account, error) {
	return s.query(ctx, s.selectSQL+" ORDER BY "+s.id)
}

func (s *AccountStore) query(ctx context.Context, sql string, args ...any) ([]recipients.Account, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []recipients.Account
	for rows.Next() {
		var (
			a      recipients.Account
			status any
		)
		if err := rows.Scan(&a.ID, &a.Role, &a.Department, &status); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Active = recipients.ParseActive(status)
		out = append(out, a)
	}
	return out, rows.Err()
}
