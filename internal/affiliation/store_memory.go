package affiliation

import (
	"context"
	"sync"
	"time"

	id "tracker/pkg/domain"
	"tracker/pkg/platform/sentinel"
)

type edgeKey struct {
	org  id.OrgKey
	user id.UserKey
}

// InMemory is a map-backed Store for tests and local runs.
type InMemory struct {
	mu    sync.RWMutex
	edges map[edgeKey]*Affiliation
}

// NewInMemory returns an empty in-memory affiliation store.
func NewInMemory() *InMemory {
	return &InMemory{edges: make(map[edgeKey]*Affiliation)}
}

func (s *InMemory) Find(_ context.Context, orgKey id.OrgKey, userKey id.UserKey) (*Affiliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.edges[edgeKey{orgKey, userKey}]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *InMemory) ListByOrg(_ context.Context, orgKey id.OrgKey) ([]*Affiliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Affiliation
	for k, a := range s.edges {
		if k.org == orgKey {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) Create(_ context.Context, a *Affiliation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := edgeKey{a.OrgKey, a.UserKey}
	if _, exists := s.edges[k]; exists {
		return sentinel.ErrConflict
	}
	cp := *a
	s.edges[k] = &cp
	return nil
}

func (s *InMemory) UpdatePermission(_ context.Context, orgKey id.OrgKey, userKey id.UserKey, permission id.Permission, now time.Time) (*Affiliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.edges[edgeKey{orgKey, userKey}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	a.Permission = permission
	a.UpdatedAt = now
	cp := *a
	return &cp, nil
}

func (s *InMemory) Delete(_ context.Context, orgKey id.OrgKey, userKey id.UserKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := edgeKey{orgKey, userKey}
	if _, ok := s.edges[k]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.edges, k)
	return nil
}
