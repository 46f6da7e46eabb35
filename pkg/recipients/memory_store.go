package recipients

import (
	"context"
	"slices"
	"sync"
)

// Record is an account row as an upstream system stores it. Status keeps the
// raw encoding; it is normalized when the record enters the store.
type Record struct {
	ID         string
	Role       string
	Department string
	Status     any
}

// MemoryAccountStore is an AccountStore over an in-process slice. Accounts
// are returned in insertion order.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts []Account
	index    map[string]int
}

// NewMemoryAccountStore seeds a store. Later records with a repeated id
// replace earlier ones in place.
func NewMemoryAccountStore(records ...Record) *MemoryAccountStore {
	s := &MemoryAccountStore{index: make(map[string]int, len(records))}
	for _, r := range records {
		s.Put(r)
	}
	return s
}

// Put inserts or replaces a record.
func (s *MemoryAccountStore) Put(r Record) {
	a := Account{ID: r.ID, Role: r.Role, Department: r.Department, Active: ParseActive(r.Status)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[r.ID]; ok {
		s.accounts[i] = a
		return
	}
	s.index[r.ID] = len(s.accounts)
	s.accounts = append(s.accounts, a)
}

// ByIDs returns known accounts in the order of ids.
func (s *MemoryAccountStore) ByIDs(_ context.Context, ids []string) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(ids))
	for _, id := range ids {
		if i, ok := s.index[id]; ok {
			out = append(out, s.accounts[i])
		}
	}
	return out, nil
}

func (s *MemoryAccountStore) ByRoles(_ context.Context, roles []string) ([]Account, error) {
	return s.filter(func(a Account) bool { return slices.Contains(roles, a.Role) }), nil
}

func (s *MemoryAccountStore) ByDepartments(_ context.Context, departments []string) ([]Account, error) {
	return s.filter(func(a Account) bool { return slices.Contains(departments, a.Department) }), nil
}

func (s *MemoryAccountStore) All(_ context.Context) ([]Account, error) {
	return s.filter(func(Account) bool { return true }), nil
}

func (s *MemoryAccountStore) filter(keep func(Account) bool) []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Account
	for _, a := range s.accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}
