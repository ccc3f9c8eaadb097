// Package store provides the persistence adapters behind the engine's
// eligibility tracker and event log.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/spigotlabs/spigot-api/internal/engine"
)

// MemoryEligibility keeps last-claim stamps in process. Suitable for local
// mode and tests; the zero time for an unseen recipient means never claimed.
type MemoryEligibility struct {
	mu     sync.RWMutex
	stamps map[string]time.Time
}

// NewMemoryEligibility creates an empty in-memory eligibility store.
func NewMemoryEligibility() *MemoryEligibility {
	return &MemoryEligibility{stamps: make(map[string]time.Time)}
}

// LastClaim returns the recipient's last successful claim time.
func (s *MemoryEligibility) LastClaim(_ context.Context, recipient string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stamps[recipient], nil
}

// SetLastClaim records the recipient's last successful claim time.
func (s *MemoryEligibility) SetLastClaim(_ context.Context, recipient string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamps[recipient] = t
	return nil
}

// MemoryEvents is a bounded in-process event log. Oldest entries are
// discarded once the capacity is reached; the engine never reads events
// back, so the bound only limits the observability window.
type MemoryEvents struct {
	mu     sync.RWMutex
	events []engine.Event
	cap    int
}

// NewMemoryEvents creates an event log holding at most capacity entries.
func NewMemoryEvents(capacity int) *MemoryEvents {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryEvents{cap: capacity}
}

// Append adds an event to the log.
func (s *MemoryEvents) Append(_ context.Context, event engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if len(s.events) > s.cap {
		s.events = s.events[len(s.events)-s.cap:]
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *MemoryEvents) Recent(limit int) []engine.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]engine.Event, 0, limit)
	for i := len(s.events) - 1; i >= len(s.events)-limit; i-- {
		out = append(out, s.events[i])
	}
	return out
}
