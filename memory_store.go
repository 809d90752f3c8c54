package login

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a process-lifetime UserStore keyed by username. Mutations
// take the write lock so concurrent registrations of the same username
// cannot both succeed; reads run in parallel and return copies so callers
// never alias store-owned records.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
	now   func() time.Time
}

var _ UserStore = (*MemoryStore)(nil)

// NewMemoryStore will create an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*User),
		now:   time.Now,
	}
}

// WithClock injects a custom clock (useful for tests)
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

func (s *MemoryStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[normalizeUsername(username)]
	if !ok {
		return nil, ErrIdentityNotFound
	}

	return user.Clone(), nil
}

func (s *MemoryStore) Register(ctx context.Context, user *User) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if user == nil || strings.TrimSpace(user.Username) == "" {
		return nil, ErrNoEmptyString
	}

	key := normalizeUsername(user.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[key]; exists {
		return nil, ErrDuplicateIdentity
	}

	record := user.Clone()
	prepareUserDefaults(record)

	now := s.now()
	record.CreatedAt = &now
	record.UpdatedAt = &now

	s.users[key] = record

	return record.Clone(), nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, username string, status UserStatus) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.users[normalizeUsername(username)]
	if !ok {
		return nil, ErrIdentityNotFound
	}

	record.Status = status
	now := s.now()
	record.UpdatedAt = &now

	return record.Clone(), nil
}

// Len reports how many records the store holds
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
