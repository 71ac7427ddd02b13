package domains

import (
	"context"
	"sync"
	"time"

	id "tracker/pkg/domain"
	"tracker/pkg/platform/sentinel"
)

type claimKey struct {
	org    id.OrgKey
	domain id.DomainKey
}

// InMemory is a map-backed Store for tests and local runs.
type InMemory struct {
	mu        sync.RWMutex
	domains   map[id.DomainKey]*Domain
	hostnames map[string]id.DomainKey
	claims    map[claimKey]*Claim
}

// NewInMemory returns an empty in-memory domain store.
func NewInMemory() *InMemory {
	return &InMemory{
		domains:   make(map[id.DomainKey]*Domain),
		hostnames: make(map[string]id.DomainKey),
		claims:    make(map[claimKey]*Claim),
	}
}

func cloneDomain(d *Domain) *Domain {
	cp := *d
	cp.Selectors = append([]string(nil), d.Selectors...)
	if d.LastRan != nil {
		t := *d.LastRan
		cp.LastRan = &t
	}
	return &cp
}

func (s *InMemory) Find(_ context.Context, key id.DomainKey) (*Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.domains[key]
	if !ok {
		return nil, nil
	}
	return cloneDomain(d), nil
}

func (s *InMemory) FindByHostname(_ context.Context, hostname string) (*Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.hostnames[hostname]
	if !ok {
		return nil, nil
	}
	return cloneDomain(s.domains[key]), nil
}

func (s *InMemory) Create(_ context.Context, d *Domain) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.domains[d.Key]; exists {
		return sentinel.ErrConflict
	}
	if _, taken := s.hostnames[d.Hostname]; taken {
		return sentinel.ErrConflict
	}
	s.domains[d.Key] = cloneDomain(d)
	s.hostnames[d.Hostname] = d.Key
	return nil
}

func (s *InMemory) Update(_ context.Context, key id.DomainKey, patch Patch, now time.Time) (*Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if patch.Hostname != nil && *patch.Hostname != d.Hostname {
		if taken, exists := s.hostnames[*patch.Hostname]; exists && taken != key {
			return nil, sentinel.ErrConflict
		}
		delete(s.hostnames, d.Hostname)
		s.hostnames[*patch.Hostname] = key
	}
	patch.Apply(d)
	d.UpdatedAt = now
	return cloneDomain(d), nil
}

func (s *InMemory) FindClaim(_ context.Context, orgKey id.OrgKey, domainKey id.DomainKey) (*Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[claimKey{orgKey, domainKey}]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *InMemory) ListClaimsByOrg(_ context.Context, orgKey id.OrgKey) ([]*Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Claim
	for k, c := range s.claims {
		if k.org == orgKey {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) CreateClaim(_ context.Context, c *Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := claimKey{c.OrgKey, c.DomainKey}
	if _, exists := s.claims[k]; exists {
		return sentinel.ErrConflict
	}
	cp := *c
	s.claims[k] = &cp
	return nil
}
