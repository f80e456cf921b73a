package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TypedDataDomain represents the EIP-712 domain separator
type TypedDataDomain struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	ChainID           *big.Int `json:"chainId"`
	VerifyingContract string   `json:"verifyingContract"`
}

// TypedDataField represents a field in EIP-712 typed data
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Permit is the EIP-2612 Permit message a token holder signs to grant
// an allowance without sending an approve transaction.
type Permit struct {
	Owner    common.Address `json:"owner"`
	Spender  common.Address `json:"spender"`
	Value    *big.Int       `json:"value"`
	Nonce    *big.Int       `json:"nonce"`
	Deadline *big.Int       `json:"deadline"`
}

// ToMap converts a Permit to the message map expected by HashTypedData.
func (p Permit) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"owner":    p.Owner.Hex(),
		"spender":  p.Spender.Hex(),
		"value":    bigOrZero(p.Value),
		"nonce":    bigOrZero(p.Nonce),
		"deadline": bigOrZero(p.Deadline),
	}
}

// Signature holds the split (v, r, s) components of a secp256k1 signature.
// V is in Ethereum form (27 or 28).
type Signature struct {
	V uint8    `json:"v"`
	R [32]byte `json:"r"`
	S [32]byte `json:"s"`
}

// Bytes returns the 65-byte concatenated signature (r, s, v).
func (s Signature) Bytes() []byte {
	out := make([]byte, 65)
	copy(out[0:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// Hex returns the 0x-prefixed hex encoding of Bytes.
func (s Signature) Hex() string {
	return BytesToHex(s.Bytes())
}

type signatureJSON struct {
	V uint8  `json:"v"`
	R string `json:"r"`
	S string `json:"s"`
}

// MarshalJSON encodes r and s as 0x-prefixed hex.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(signatureJSON{
		V: s.V,
		R: BytesToHex(s.R[:]),
		S: BytesToHex(s.S[:]),
	})
}

// UnmarshalJSON accepts either the {v, r, s} object form or a single
// 65-byte hex string.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		sig, err := ParseSignature(str)
		if err != nil {
			return err
		}
		*s = sig
		return nil
	}

	var raw signatureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	r, err := hexToWord(raw.R)
	if err != nil {
		return fmt.Errorf("invalid signature r: %w", err)
	}
	sv, err := hexToWord(raw.S)
	if err != nil {
		return fmt.Errorf("invalid signature s: %w", err)
	}
	s.V = raw.V
	s.R = r
	s.S = sv
	return nil
}

// ClientEvmSigner defines the interface for client-side EVM signing operations
type ClientEvmSigner interface {
	// Address returns the signer's Ethereum address
	Address() string

	// SignTypedData signs EIP-712 typed data
	SignTypedData(ctx context.Context, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error)

	// SignMessage signs an EIP-191 personal message ("\x19Ethereum Signed Message:\n" prefix)
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// NetworkConfig contains network-specific configuration
type NetworkConfig struct {
	ChainID *big.Int
	Name    string
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
