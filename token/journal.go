package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Every mutation goes through one of the setters below so it can be undone
// by RevertToSnapshot.

func (l *Ledger) setBalance(who common.Address, v *big.Int) {
	prev, had := l.balances[who]
	l.journal = append(l.journal, func() {
		if had {
			l.balances[who] = prev
		} else {
			delete(l.balances, who)
		}
	})
	l.balances[who] = v
}

func (l *Ledger) setNonce(owner common.Address, v *big.Int) {
	prev, had := l.nonces[owner]
	l.journal = append(l.journal, func() {
		if had {
			l.nonces[owner] = prev
		} else {
			delete(l.nonces, owner)
		}
	})
	l.nonces[owner] = v
}

func (l *Ledger) setAllowance(owner, spender common.Address, v *big.Int) {
	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[common.Address]*big.Int)
		l.allowances[owner] = m
	}
	prev, had := m[spender]
	l.journal = append(l.journal, func() {
		if had {
			l.allowances[owner][spender] = prev
			return
		}
		delete(l.allowances[owner], spender)
		if len(l.allowances[owner]) == 0 {
			delete(l.allowances, owner)
		}
	})
	m[spender] = v
}

func (l *Ledger) setTotalSupply(v *big.Int) {
	prev := l.totalSupply
	l.journal = append(l.journal, func() { l.totalSupply = prev })
	l.totalSupply = v
}

// Snapshot returns a revision id that RevertToSnapshot can roll back to.
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.journal)
}

// RevertToSnapshot undoes every mutation made since Snapshot returned id.
// It panics on an id that was never issued or was already discarded.
func (l *Ledger) RevertToSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id < 0 || id > len(l.journal) {
		panic(fmt.Sprintf("token: revision id %d cannot be reverted (journal length %d)", id, len(l.journal)))
	}
	for i := len(l.journal) - 1; i >= id; i-- {
		l.journal[i]()
	}
	l.journal = l.journal[:id]
}

// Finalise drops the journal. Snapshots taken before the call can no longer
// be reverted.
func (l *Ledger) Finalise() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.journal = nil
}
