// Package token is an in-process ERC-20 ledger with EIP-2612 permit support.
//
// It is the reference implementation of the asset the store settles in:
// balances, allowances, per-owner permit nonces, and a journal so a failed
// call can be reverted the way an EVM transaction reverts.
//
// # Permit flow
//
//	nonce, _ := tok.Nonces(ctx, owner)
//	sig, _ := signer.SignPermit(ctx, tok.Domain(), spender, value, nonce, deadline)
//	err := tok.Permit(ctx, owner, spender, value, deadline, sig)
//	err = tok.TransferFrom(ctx, spender, owner, spender, value)
//
// Deadlines are compared against the chain height, not wall-clock time.
package token
