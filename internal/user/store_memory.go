package user

import (
	"context"
	"sync"

	id "tracker/pkg/domain"
)

// InMemory is a map-backed Store for tests and local runs.
type InMemory struct {
	mu    sync.RWMutex
	users map[id.UserKey]*User
}

// NewInMemory returns an empty in-memory user store.
func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.UserKey]*User)}
}

// Put inserts or replaces a record. Test seeding only.
func (s *InMemory) Put(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.Key] = &cp
}

func (s *InMemory) Find(_ context.Context, key id.UserKey) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[key]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *InMemory) FindMany(_ context.Context, keys []id.UserKey) (map[id.UserKey]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.UserKey]*User, len(keys))
	for _, key := range keys {
		if u, ok := s.users[key]; ok {
			cp := *u
			out[key] = &cp
		}
	}
	return out, nil
}
