package recipients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Resolver computes recipient lists. It has no side effects.
type Resolver struct {
	store  AccountStore
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver reading from store.
func NewResolver(store AccountStore, opts ...Option) *Resolver {
	r := &Resolver{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the active, de-duplicated user ids for t, in order of first
// appearance. KindBroadcast resolves to an empty list without touching the
// store. Store errors are wrapped with ErrAccountStore.
func (r *Resolver) Resolve(ctx context.Context, t Targeting) ([]string, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.IsBroadcast() {
		return []string{}, nil
	}

	ids := cleanIDs(t.IDs)
	var (
		accounts []Account
		err      error
	)
	switch t.Kind {
	case KindUsers:
		accounts, err = r.store.ByIDs(ctx, ids)
	case KindRoles:
		accounts, err = r.store.ByRoles(ctx, ids)
	case KindDepartments:
		accounts, err = r.store.ByDepartments(ctx, ids)
	case KindAll:
		accounts, err = r.store.All(ctx)
	}
	if err != nil {
		return nil, errors.Join(ErrAccountStore, fmt.Errorf("resolve %s: %w", t.Kind, err))
	}

	out := make([]string, 0, len(accounts))
	seen := make(map[string]struct{}, len(accounts))
	inactive := 0
	for _, a := range accounts {
		if !a.Active {
			inactive++
			continue
		}
		if _, ok := seen[a.ID]; ok || a.ID == "" {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a.ID)
	}

	r.logger.LogAttrs(ctx, slog.LevelDebug, "recipients resolved",
		logger.Component("recipients"),
		slog.String("kind", string(t.Kind)),
		logger.Count("recipients", len(out)),
		logger.Count("inactive", inactive),
	)
	return out, nil
}
