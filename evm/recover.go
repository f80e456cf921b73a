package evm

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrExpiredSignature is returned by permit() when the deadline has passed.
	ErrExpiredSignature = errors.New("ERC2612ExpiredSignature")

	// ErrInvalidSigner is returned by permit() when the recovered signer is not the owner.
	ErrInvalidSigner = errors.New("ERC2612InvalidSigner")

	// ErrInvalidSignature is returned when a signature cannot be recovered at all.
	ErrInvalidSignature = errors.New("ECDSAInvalidSignature")
)

// Recoverer recovers the identity that produced a signature over a digest.
// Implementations decide the signature scheme; callers only compare identities.
type Recoverer interface {
	RecoverIdentity(digest []byte, sig Signature) (common.Address, error)
}

// ECDSARecoverer recovers secp256k1 signers the way OpenZeppelin's ECDSA.recover does:
// v must be 27 or 28 and s must be in the lower half of the curve order.
type ECDSARecoverer struct{}

// RecoverIdentity implements Recoverer.
func (ECDSARecoverer) RecoverIdentity(digest []byte, sig Signature) (common.Address, error) {
	if len(digest) != 32 {
		return common.Address{}, fmt.Errorf("%w: digest must be 32 bytes, got %d", ErrInvalidSignature, len(digest))
	}

	v := sig.V
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("%w: bad v %d", ErrInvalidSignature, sig.V)
	}

	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, fmt.Errorf("%w: signature values out of range", ErrInvalidSignature)
	}

	raw := make([]byte, SignatureLength)
	copy(raw[0:32], sig.R[:])
	copy(raw[32:64], sig.S[:])
	raw[64] = v

	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

var _ Recoverer = ECDSARecoverer{}
