package dedup

import (
	"context"
	"sync"
	"time"
)

// Store is a time-bounded set of recently seen fingerprints.
// Implementations must be safe for concurrent use.
type Store interface {
	// Seen reports whether fp was recorded less than its TTL ago.
	Seen(ctx context.Context, fp string) (bool, error)
	// Record marks fp as seen for ttl.
	Record(ctx context.Context, fp string, ttl time.Duration) error
	// CheckAndRecord atomically records fp unless it is already present.
	// It reports true when fp was already present.
	CheckAndRecord(ctx context.Context, fp string, ttl time.Duration) (bool, error)
	// Forget removes fp so the next delivery is not treated as duplicate.
	Forget(ctx context.Context, fp string) error
	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// MemoryStore keeps fingerprints in process memory.
// Expired entries are ignored on read and removed by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // fingerprint -> expiry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used in tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Seen implements Store.
func (s *MemoryStore) Seen(_ context.Context, fp string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(fp), nil
}

// Record implements Store.
func (s *MemoryStore) Record(_ context.Context, fp string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fp] = s.now().Add(ttl)
	return nil
}

// CheckAndRecord implements Store. The check and the insert share one
// critical section.
func (s *MemoryStore) CheckAndRecord(_ context.Context, fp string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.liveLocked(fp) {
		return true, nil
	}
	s.entries[fp] = s.now().Add(ttl)
	return false, nil
}

// Forget implements Store.
func (s *MemoryStore) Forget(_ context.Context, fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, fp)
	return nil
}

// Len implements Store. Expired entries not yet swept are not counted.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, exp := range s.entries {
		if now.Before(exp) {
			n++
		}
	}
	return n, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Sweep removes expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for fp, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, fp)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) liveLocked(fp string) bool {
	exp, ok := s.entries[fp]
	if !ok {
		return false
	}
	if !s.now().Before(exp) {
		delete(s.entries, fp)
		return false
	}
	return true
}
