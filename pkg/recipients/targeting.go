package recipients

import (
	"fmt"
	"strings"
)

// Kind selects how Targeting.IDs are interpreted.
type Kind string

const (
	KindUsers       Kind = "users"
	KindRoles       Kind = "roles"
	KindDepartments Kind = "departments"
	// KindAll addresses every active account by id.
	KindAll Kind = "all"
	// KindBroadcast addresses nobody in particular: the message is
	// system-wide and resolves to an empty list.
	KindBroadcast Kind = "broadcast"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindUsers, KindRoles, KindDepartments, KindAll, KindBroadcast:
		return true
	}
	return false
}

// Targeting describes who a notification is for.
type Targeting struct {
	Kind Kind     `json:"kind"`
	IDs  []string `json:"ids,omitempty"`
}

func Users(ids ...string) Targeting      { return Targeting{Kind: KindUsers, IDs: ids} }
func Roles(roles ...string) Targeting    { return Targeting{Kind: KindRoles, IDs: roles} }
func Departments(ds ...string) Targeting { return Targeting{Kind: KindDepartments, IDs: ds} }
func AllActive() Targeting               { return Targeting{Kind: KindAll} }
func Broadcast() Targeting               { return Targeting{Kind: KindBroadcast} }

// Validate checks the kind and that id-based kinds carry at least one id.
func (t Targeting) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTargeting, t.Kind)
	}
	switch t.Kind {
	case KindUsers, KindRoles, KindDepartments:
		if len(cleanIDs(t.IDs)) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyTargeting, t.Kind)
		}
	}
	return nil
}

// IsBroadcast reports whether the targeting is system-wide.
func (t Targeting) IsBroadcast() bool { return t.Kind == KindBroadcast }

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
