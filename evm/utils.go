package evm

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// HexToBytes decodes a hex string with or without the 0x prefix.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// BytesToHex encodes bytes as a 0x-prefixed lowercase hex string.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// NormalizeAddress returns the EIP-55 checksummed form of an address.
func NormalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// ParseAddress parses a strictly formatted hex address.
func ParseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid address: %q", address)
	}
	return common.HexToAddress(address), nil
}

// ParseSignature splits a 65-byte (r, s, v) hex signature into its components.
func ParseSignature(signature string) (Signature, error) {
	sigBytes, err := HexToBytes(signature)
	if err != nil {
		return Signature{}, err
	}
	return SignatureFromBytes(sigBytes)
}

// SignatureFromBytes splits a 65-byte (r, s, v) signature. A v of 0 or 1 is
// normalized to 27 or 28.
func SignatureFromBytes(sigBytes []byte) (Signature, error) {
	if len(sigBytes) != SignatureLength {
		return Signature{}, errors.New("signature must be 65 bytes")
	}

	var sig Signature
	copy(sig.R[:], sigBytes[0:32])
	copy(sig.S[:], sigBytes[32:64])
	sig.V = sigBytes[64]
	if sig.V < 27 {
		sig.V += 27
	}
	return sig, nil
}

// ParseUint256 parses a decimal string into a non-negative big.Int.
func ParseUint256(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("invalid uint256: %q", s)
	}
	return v, nil
}

// MaxUint256 returns 2^256 - 1.
func MaxUint256() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
}

func hexToWord(s string) ([32]byte, error) {
	var out [32]byte
	b, err := HexToBytes(s)
	if err != nil {
		return out, err
	}
	if len(b) > 32 {
		return out, fmt.Errorf("value longer than 32 bytes")
	}
	copy(out[32-len(b):], b)
	return out, nil
}
