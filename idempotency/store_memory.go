package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/technostore/technostore/go/node"
)

// InMemoryStore is a ReceiptStore for a single API process.
// Expired entries are dropped lazily.
type InMemoryStore struct {
	mu       sync.Mutex
	results  map[string]*node.Receipt
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
}

// NewInMemoryStore creates a store that keeps receipts for ttl.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		results:  make(map[string]*node.Receipt),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
	}
}

// CheckAndMark implements ReceiptStore.
func (s *InMemoryStore) CheckAndMark(key string) (Status, *node.Receipt, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, exists := s.expiry[key]; exists {
		if time.Now().Before(expiry) {
			if result, ok := s.results[key]; ok {
				return StatusCached, result, nil
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

// WaitForResult implements ReceiptStore.
func (s *InMemoryStore) WaitForResult(ctx context.Context, key string, done chan struct{}) (*node.Receipt, error) {
	select {
	case <-done:
		return s.Get(key), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the cached receipt for key, or nil.
func (s *InMemoryStore) Get(key string) *node.Receipt {
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

// Complete implements ReceiptStore.
func (s *InMemoryStore) Complete(key string, receipt *node.Receipt, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[key] = receipt
	s.expiry[key] = time.Now().Add(s.ttl)
	delete(s.inFlight, key)
	close(done)

	s.cleanupExpiredLocked()
}

// Fail implements ReceiptStore.
func (s *InMemoryStore) Fail(key string, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, key)
	close(done)
}

func (s *InMemoryStore) cleanupExpiredLocked() {
	now := time.Now()
	for key, expiry := range s.expiry {
		if now.After(expiry) {
			delete(s.results, key)
			delete(s.expiry, key)
		}
	}
}

var _ ReceiptStore = (*InMemoryStore)(nil)
