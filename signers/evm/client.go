package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/technostore/technostore/go/evm"
)

// ClientSigner implements evm.ClientEvmSigner using an ECDSA private key.
// It signs EIP-2612 permits for purchases and EIP-191 messages for
// transaction envelopes.
type ClientSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewClientSignerFromPrivateKey creates a client signer from a hex-encoded private key.
//
// Args:
//
//	privateKeyHex: Hex-encoded private key (with or without "0x" prefix)
//
// Returns:
//
//	ClientSigner ready to sign permits and envelopes
//	Error if private key is invalid
//
// Example:
//
//	signer, err := evm.NewClientSignerFromPrivateKey("0x1234...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sig, err := signer.SignPermit(ctx, domain, permit)
func NewClientSignerFromPrivateKey(privateKeyHex string) (*ClientSigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return NewClientSigner(privateKey), nil
}

// NewClientSigner wraps an existing private key.
func NewClientSigner(privateKey *ecdsa.PrivateKey) *ClientSigner {
	return &ClientSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// GenerateClientSigner creates a signer with a fresh random key.
func GenerateClientSigner() (*ClientSigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return NewClientSigner(privateKey), nil
}

// Address returns the Ethereum address of the signer.
func (s *ClientSigner) Address() string {
	return s.address.Hex()
}

// CommonAddress returns the signer address as a go-ethereum address.
func (s *ClientSigner) CommonAddress() common.Address {
	return s.address
}

// PrivateKeyHex returns the 0x-prefixed private key.
func (s *ClientSigner) PrivateKeyHex() string {
	return evm.BytesToHex(crypto.FromECDSA(s.privateKey))
}

// SignTypedData signs EIP-712 typed data.
//
// Returns the 65-byte signature (r, s, v) with v in {27, 28}.
func (s *ClientSigner) SignTypedData(
	ctx context.Context,
	domain evm.TypedDataDomain,
	types map[string][]evm.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	digest, err := evm.HashTypedData(domain, types, primaryType, message)
	if err != nil {
		return nil, err
	}
	return s.signDigest(digest)
}

// SignMessage signs an EIP-191 personal message, like eth_sign / signer.signMessage.
func (s *ClientSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	return s.signDigest(evm.EthSignedMessageHash(message))
}

// SignPermit signs an EIP-2612 permit granting spender an allowance of value
// until deadline, using the token owner's current permit nonce.
func (s *ClientSigner) SignPermit(
	ctx context.Context,
	domain evm.TypedDataDomain,
	spender common.Address,
	value *big.Int,
	nonce *big.Int,
	deadline *big.Int,
) (evm.Signature, error) {
	permit := evm.Permit{
		Owner:    s.address,
		Spender:  spender,
		Value:    value,
		Nonce:    nonce,
		Deadline: deadline,
	}

	signatureBytes, err := s.SignTypedData(ctx, domain, evm.GetEIP2612EIP712Types(), evm.PermitPrimaryType, permit.ToMap())
	if err != nil {
		return evm.Signature{}, fmt.Errorf("failed to sign EIP-2612 permit: %w", err)
	}
	return evm.SignatureFromBytes(signatureBytes)
}

func (s *ClientSigner) signDigest(digest []byte) ([]byte, error) {
	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// Adjust v value for Ethereum (recovery ID 0/1 → 27/28)
	signature[64] += 27

	return signature, nil
}

var _ evm.ClientEvmSigner = (*ClientSigner)(nil)
