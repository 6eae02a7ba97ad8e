// Package ratelimit provides the fixed-window counter store behind the
// plan-tiered rate limiter.
//
// The limit is a soft quota: the increment is atomic within one store, but a
// fleet of stateless invocations each holding a MemoryStore counts
// independently, so bursts can transiently over-admit by roughly the number
// of concurrent instances. Hosts that need a shared view plug in a
// CounterStore backed by an external cache; the policy logic never hard-codes
// the storage choice.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Counter is one identity's usage within the current window.
type Counter struct {
	Count   int
	ResetAt time.Time
}

// CounterStore increments per-identity request counters with fixed-window
// reset semantics.
type CounterStore interface {
	// IncrementOrReset resets the counter to zero when the window has
	// elapsed, then increments it, returning the post-increment state.
	IncrementOrReset(ctx context.Context, key string, window time.Duration) (Counter, error)
}

// Peeker is an optional CounterStore extension for read-only usage queries.
type Peeker interface {
	Peek(ctx context.Context, key string) (Counter, bool)
}

// MemoryStore is a process-local CounterStore. Counters do not survive
// process restarts or stateless function invocations.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Counter
	now     func() time.Time
}

var _ CounterStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Counter),
		now:     time.Now,
	}
}

// IncrementOrReset implements CounterStore.
func (s *MemoryStore) IncrementOrReset(_ context.Context, key string, window time.Duration) (Counter, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !now.Before(e.ResetAt) {
		e = &Counter{ResetAt: now.Add(window)}
		s.entries[key] = e
	}
	e.Count++
	return *e, nil
}

// Peek returns the current counter without incrementing it.
func (s *MemoryStore) Peek(_ context.Context, key string) (Counter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.ResetAt) {
		return Counter{}, false
	}
	return *e, true
}

// cleanup removes counters whose windows have fully expired.
func (s *MemoryStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if !now.Before(e.ResetAt) {
			delete(s.entries, key)
		}
	}
}

// StartCleanup launches a background goroutine that periodically evicts
// expired counters. It stops when ctx is cancelled.
func (s *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.cleanup(now)
			}
		}
	}()
}
