package technostore

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/technostore/technostore/go/evm"
)

// Asset is the fungible token the store prices products in.
//
// Permit must validate the EIP-2612 signature against the owner's current
// nonce, consume that nonce and grant spender an allowance of value. A
// deadline that has passed must be reported as evm.ErrExpiredSignature.
type Asset interface {
	BalanceOf(ctx context.Context, who common.Address) (*big.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error
	Nonces(ctx context.Context, owner common.Address) (*big.Int, error)
	Permit(ctx context.Context, owner, spender common.Address, value, deadline *big.Int, sig evm.Signature) error

	// Domain returns the EIP-712 domain permits are signed under.
	Domain() evm.TypedDataDomain
}

// Reverter is implemented by assets that can roll back their own state.
// When the asset supports it, a purchase whose transfer fails after the
// permit succeeded leaves the permit nonce unconsumed.
type Reverter interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// Clock supplies the current ledger height.
type Clock interface {
	Height() uint64
}
