package idempotency

import (
	"context"
	"sync"
	"time"

	processor "github.com/solpayments/solana-payment-processor"
)

// InMemoryStore is a mutex-guarded SettlementStore for single-process
// deployments. Cached splits expire after a TTL; expired entries are cleaned
// up lazily on writes.
type InMemoryStore struct {
	mu       sync.Mutex
	results  map[string]*processor.FeeSplit
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
}

// NewInMemoryStore creates an empty store. The TTL bounds the deduplication
// window for successful settlements.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		results:  make(map[string]*processor.FeeSplit),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
	}
}

// CheckAndMark atomically checks the cache and claims the in-flight slot when
// the key is unknown.
func (s *InMemoryStore) CheckAndMark(key string) (SettlementStatus, *processor.FeeSplit, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, exists := s.expiry[key]; exists {
		if time.Now().Before(expiry) {
			if split, ok := s.results[key]; ok {
				return StatusCached, split, nil
			}
		}
		delete(s.results, key)
		delete(s.expiry, key)
	}

	if done, exists := s.inFlight[key]; exists {
		return StatusInFlight, nil, done
	}

	done := make(chan struct{})
	s.inFlight[key] = done
	return StatusNotFound, nil, done
}

// WaitForResult blocks on the in-flight settlement or context cancellation.
func (s *InMemoryStore) WaitForResult(ctx context.Context, key string, done chan struct{}) (*processor.FeeSplit, error) {
	select {
	case <-done:
		return s.get(key), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *InMemoryStore) get(key string) *processor.FeeSplit {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.expiry[key]
	if !exists {
		return nil
	}
	if time.Now().After(expiry) {
		delete(s.results, key)
		delete(s.expiry, key)
		return nil
	}
	return s.results[key]
}

// Complete caches the split, releases the in-flight slot, and wakes waiters.
func (s *InMemoryStore) Complete(key string, split *processor.FeeSplit, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[key] = split
	s.expiry[key] = time.Now().Add(s.ttl)
	delete(s.inFlight, key)
	close(done)

	s.cleanupExpiredLocked()
}

// Fail releases the in-flight slot without caching so waiters retry.
func (s *InMemoryStore) Fail(key string, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, key)
	close(done)
}

// cleanupExpiredLocked removes expired entries. Must be called with the lock
// held.
func (s *InMemoryStore) cleanupExpiredLocked() {
	now := time.Now()
	for key, expiry := range s.expiry {
		if now.After(expiry) {
			delete(s.results, key)
			delete(s.expiry, key)
		}
	}
}

var _ SettlementStore = (*InMemoryStore)(nil)
