package audit

import (
	"context"
	"sync"
)

// InMemory is an append-only slice store for tests and local runs.
type InMemory struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemory returns an empty in-memory audit store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *InMemory) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
