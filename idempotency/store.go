package idempotency

import (
	"context"

	"github.com/technostore/technostore/go/node"
)

// Status represents the result of checking the store.
type Status int

const (
	// StatusNotFound means no cached receipt and no in-flight submission.
	StatusNotFound Status = iota
	// StatusCached means a cached receipt was found.
	StatusCached
	// StatusInFlight means another request is currently submitting this transaction.
	StatusInFlight
)

// ReceiptStore defines the storage behind submission deduplication.
// Implementations must be safe for concurrent use.
type ReceiptStore interface {
	// CheckAndMark atomically checks the store and marks the key as in-flight if needed.
	//
	// Returns:
	//   - StatusCached + receipt + nil: return the cached receipt immediately
	//   - StatusInFlight + nil + done: another request is submitting, wait on done
	//   - StatusNotFound + nil + done: this request should proceed (now marked in-flight)
	//
	// The done channel must be passed to Complete() or Fail().
	CheckAndMark(key string) (Status, *node.Receipt, chan struct{})

	// WaitForResult waits for an in-flight submission, respecting context cancellation.
	// It returns nil, nil if the in-flight submission failed.
	WaitForResult(ctx context.Context, key string, done chan struct{}) (*node.Receipt, error)

	// Complete caches the receipt and signals waiters.
	Complete(key string, receipt *node.Receipt, done chan struct{})

	// Fail removes the in-flight marker without caching and signals waiters.
	Fail(key string, done chan struct{})
}

// KeyGenerator derives the deduplication key of a transaction.
type KeyGenerator func(tx *node.Tx) string

// DefaultKeyGenerator keys a transaction by its hash, which covers the
// sender, nonce, method, arguments and signature.
func DefaultKeyGenerator(tx *node.Tx) string {
	return tx.Hash().Hex()
}
