package users

import (
	"context"
	"sort"
	"strings"
	"sync"

	contractx "github.com/JRealValdes/jarvis/agent/contract"
	"github.com/JRealValdes/jarvis/agent/identity"
)

// MemoryStore keeps users in process. Used by tests and by the CLI when no
// database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]contractx.UserRecord
	debug bool
}

func NewMemoryStore(debug bool, seed ...Registration) (*MemoryStore, error) {
	s := &MemoryStore{
		users: make(map[string]contractx.UserRecord, len(seed)),
		debug: debug,
	}
	for _, reg := range seed {
		if err := s.Insert(context.Background(), reg); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *MemoryStore) FindByHash(_ context.Context, hashedID string) (*contractx.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[hashedID]
	if !ok {
		return nil, contractx.ErrUserNotFound
	}
	return &user, nil
}

func (s *MemoryStore) Insert(_ context.Context, reg Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	rec := reg.Record()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rec.AccessIdentifier]; ok {
		return ErrDuplicateIdentifier
	}
	s.users[rec.AccessIdentifier] = rec
	return nil
}

func (s *MemoryStore) DeleteByUsername(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := false
	for key, u := range s.users {
		if u.Username == strings.TrimSpace(username) {
			delete(s.users, key)
			deleted = true
		}
	}
	return deleted, nil
}

func (s *MemoryStore) DeleteByIdentification(_ context.Context, identification string) (bool, error) {
	key := identity.Hash(strings.TrimSpace(identification))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[key]; !ok {
		return false, nil
	}
	delete(s.users, key)
	return true, nil
}

func (s *MemoryStore) List(_ context.Context) ([]contractx.UserRecord, error) {
	if !s.debug {
		return nil, ErrDebugDisabled
	}

	s.mu.RLock()
	out := make([]contractx.UserRecord, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
