// Package ledger provides the monotonic block height the store uses as its clock.
package ledger

import "sync/atomic"

// Chain is a monotonic block counter. Every transaction executed by the
// node mines exactly one block, the way a local dev chain automines.
type Chain struct {
	height atomic.Uint64
}

// NewChain returns a chain positioned at height.
func NewChain(height uint64) *Chain {
	c := &Chain{}
	c.height.Store(height)
	return c
}

// Height returns the current block height.
func (c *Chain) Height() uint64 {
	return c.height.Load()
}

// Mine advances the chain by one block and returns the new height.
func (c *Chain) Mine() uint64 {
	return c.height.Add(1)
}

// MineN advances the chain by n blocks and returns the new height.
func (c *Chain) MineN(n uint64) uint64 {
	return c.height.Add(n)
}

// MineTo advances the chain to height. It never moves the chain backwards.
func (c *Chain) MineTo(height uint64) uint64 {
	for {
		cur := c.height.Load()
		if height <= cur {
			return cur
		}
		if c.height.CompareAndSwap(cur, height) {
			return height
		}
	}
}
