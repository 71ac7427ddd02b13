package organization

import (
	"context"
	"sync"
	"time"

	id "tracker/pkg/domain"
	"tracker/pkg/platform/sentinel"
)

type slugKey struct {
	locale Locale
	slug   string
}

// InMemory is a map-backed Store for tests and local runs.
type InMemory struct {
	mu    sync.RWMutex
	orgs  map[id.OrgKey]*Organization
	slugs map[slugKey]id.OrgKey
}

// NewInMemory returns an empty in-memory organization store.
func NewInMemory() *InMemory {
	return &InMemory{
		orgs:  make(map[id.OrgKey]*Organization),
		slugs: make(map[slugKey]id.OrgKey),
	}
}

func clone(o *Organization) *Organization {
	cp := *o
	cp.Details = make(map[Locale]Details, len(o.Details))
	for locale, d := range o.Details {
		cp.Details[locale] = d
	}
	return &cp
}

func (s *InMemory) Find(_ context.Context, key id.OrgKey) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[key]
	if !ok {
		return nil, nil
	}
	return clone(o), nil
}

func (s *InMemory) FindBySlug(_ context.Context, locale Locale, slug string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.slugs[slugKey{locale, slug}]
	if !ok {
		return nil, nil
	}
	return clone(s.orgs[key]), nil
}

func (s *InMemory) Create(_ context.Context, o *Organization) error {
	if err := o.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orgs[o.Key]; exists {
		return sentinel.ErrConflict
	}
	for locale, d := range o.Details {
		if _, taken := s.slugs[slugKey{locale, d.Slug}]; taken {
			return sentinel.ErrConflict
		}
	}
	s.orgs[o.Key] = clone(o)
	for locale, d := range o.Details {
		s.slugs[slugKey{locale, d.Slug}] = o.Key
	}
	return nil
}

func (s *InMemory) UpdateDetails(_ context.Context, key id.OrgKey, locale Locale, patch DetailsPatch, now time.Time) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	d, ok := o.Details[locale]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	if patch.Slug != nil && *patch.Slug != d.Slug {
		if owner, taken := s.slugs[slugKey{locale, *patch.Slug}]; taken && owner != key {
			return nil, sentinel.ErrConflict
		}
		delete(s.slugs, slugKey{locale, d.Slug})
		s.slugs[slugKey{locale, *patch.Slug}] = key
	}

	patch.Apply(&d)
	o.Details[locale] = d
	o.UpdatedAt = now
	return clone(o), nil
}
