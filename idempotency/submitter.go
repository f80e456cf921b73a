package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/technostore/technostore/go/node"
)

// DefaultTTL is how long receipts are kept by default.
const DefaultTTL = 10 * time.Minute

// Submitter executes signed transactions. *node.Node implements it.
type Submitter interface {
	Submit(ctx context.Context, tx *node.Tx) (*node.Receipt, error)
}

// IdempotentSubmitter wraps a Submitter with deduplication.
type IdempotentSubmitter struct {
	inner        Submitter
	store        ReceiptStore
	keyGenerator KeyGenerator
}

// Wrap returns an IdempotentSubmitter around inner.
//
// Default configuration:
//   - InMemoryStore with DefaultTTL
//   - DefaultKeyGenerator
func Wrap(inner Submitter, opts ...Option) *IdempotentSubmitter {
	cfg := &config{
		ttl:          DefaultTTL,
		keyGenerator: DefaultKeyGenerator,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.store
	if store == nil {
		store = NewInMemoryStore(cfg.ttl)
	}

	return &IdempotentSubmitter{
		inner:        inner,
		store:        store,
		keyGenerator: cfg.keyGenerator,
	}
}

// Submit executes tx once. Repeats of a mined transaction get the cached
// receipt; concurrent repeats wait for the first. Errors are not cached.
func (s *IdempotentSubmitter) Submit(ctx context.Context, tx *node.Tx) (*node.Receipt, error) {
	key := s.keyGenerator(tx)

	status, receipt, done := s.store.CheckAndMark(key)
	switch status {
	case StatusCached:
		return receipt, nil

	case StatusInFlight:
		receipt, err := s.store.WaitForResult(ctx, key, done)
		if err != nil {
			return nil, fmt.Errorf("waiting for in-flight submission: %w", err)
		}
		if receipt != nil {
			return receipt, nil
		}
		// The first submission failed; try again with a fresh in-flight slot.
		return s.Submit(ctx, tx)

	case StatusNotFound:
	}

	receipt, err := s.inner.Submit(ctx, tx)
	if err != nil {
		s.store.Fail(key, done)
		return receipt, err
	}

	s.store.Complete(key, receipt, done)
	return receipt, nil
}
