package recipients

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"strconv"
	"strings"
)

// Account is the normalized view of a user the resolver works with.
type Account struct {
	ID         string
	Role       string
	Department string
	Active     bool
}

// AccountStore looks accounts up. Implementations must set Account.Active
// from their own status encoding (see ParseActive). Returning inactive
// accounts is fine: the resolver filters them.
type AccountStore interface {
	ByIDs(ctx context.Context, ids []string) ([]Account, error)
	ByRoles(ctx context.Context, roles []string) ([]Account, error)
	ByDepartments(ctx context.Context, departments []string) ([]Account, error)
	All(ctx context.Context) ([]Account, error)
}

// ParseActive reports whether a raw status value means "active".
// Accepted: the string "active" (any case), the string "true", boolean true
// and the number 1 in any numeric type or decimal text ("1", "1.0").
// Database values are unwrapped through driver.Valuer. Everything else,
// including nil, is inactive.
func ParseActive(v any) bool {
	switch s := v.(type) {
	case nil:
		return false
	case bool:
		return s
	case string:
		s = strings.ToLower(strings.TrimSpace(s))
		switch s {
		case "active", "true":
			return true
		}
		n, err := strconv.ParseFloat(s, 64)
		return err == nil && n == 1
	case json.Number:
		return ParseActive(string(s))
	case []byte:
		return ParseActive(string(s))
	case int:
		return s == 1
	case int8:
		return s == 1
	case int16:
		return s == 1
	case int32:
		return s == 1
	case int64:
		return s == 1
	case uint:
		return s == 1
	case uint8:
		return s == 1
	case uint16:
		return s == 1
	case uint32:
		return s == 1
	case uint64:
		return s == 1
	case float32:
		return s == 1
	case float64:
		return s == 1
	case *bool:
		return s != nil && *s
	case *string:
		return s != nil && ParseActive(*s)
	case driver.Valuer:
		v, err := s.Value()
		if err != nil {
			return false
		}
		if _, again := v.(driver.Valuer); again {
			return false
		}
		return ParseActive(v)
	}
	return false
}
