package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// State is a deep copy of the ledger's balances, nonces and allowances.
type State struct {
	TotalSupply *big.Int
	Balances    map[common.Address]*big.Int
	Nonces      map[common.Address]*big.Int
	Allowances  map[common.Address]map[common.Address]*big.Int
}

// State exports the current ledger contents. Zero entries are omitted.
func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := State{
		TotalSupply: new(big.Int).Set(l.totalSupply),
		Balances:    copyNonZero(l.balances),
		Nonces:      copyNonZero(l.nonces),
		Allowances:  make(map[common.Address]map[common.Address]*big.Int, len(l.allowances)),
	}
	for owner, m := range l.allowances {
		if c := copyNonZero(m); len(c) > 0 {
			s.Allowances[owner] = c
		}
	}
	return s
}

// Restore replaces the ledger contents with s and drops the journal.
func (l *Ledger) Restore(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalSupply = new(big.Int)
	if s.TotalSupply != nil {
		l.totalSupply.Set(s.TotalSupply)
	}
	l.balances = copyNonZero(s.Balances)
	l.nonces = copyNonZero(s.Nonces)
	l.allowances = make(map[common.Address]map[common.Address]*big.Int, len(s.Allowances))
	for owner, m := range s.Allowances {
		if c := copyNonZero(m); len(c) > 0 {
			l.allowances[owner] = c
		}
	}
	l.journal = nil
}

func copyNonZero(in map[common.Address]*big.Int) map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int, len(in))
	for k, v := range in {
		if v == nil || v.Sign() == 0 {
			continue
		}
		out[k] = new(big.Int).Set(v)
	}
	return out
}
