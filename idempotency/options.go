package idempotency

import "time"

type config struct {
	ttl          time.Duration
	store        ReceiptStore
	keyGenerator KeyGenerator
}

// Option configures an IdempotentSubmitter.
type Option func(*config)

// WithTTL sets how long receipts are kept. Ignored when WithStore is used.
//
// Default: 10 minutes
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithStore sets a custom ReceiptStore.
func WithStore(store ReceiptStore) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithKeyGenerator sets a custom key function.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(c *config) {
		c.keyGenerator = gen
	}
}
