package evm

import (
	"math/big"
)

const (
	// PermitPrimaryType is the EIP-712 primary type name used by EIP-2612.
	PermitPrimaryType = "Permit"

	// DefaultTokenVersion is the EIP-712 domain version used by OpenZeppelin ERC20Permit tokens.
	DefaultTokenVersion = "1"

	// SignatureLength is the length of a concatenated (r, s, v) signature.
	SignatureLength = 65
)

var (
	// Network chain IDs
	ChainIDHardhat = big.NewInt(31337)
	ChainIDSepolia = big.NewInt(11155111)

	// NetworkConfigs lists the networks the store can be deployed against.
	NetworkConfigs = map[string]NetworkConfig{
		"hardhat": {ChainID: ChainIDHardhat, Name: "hardhat"},
		"sepolia": {ChainID: ChainIDSepolia, Name: "sepolia"},
	}

	// EIP712DomainTypes is the full domain type used by EIP-2612 tokens.
	EIP712DomainTypes = []TypedDataField{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}

	// PermitTypes defines the EIP-2612 Permit struct.
	// Field order MUST match the token contract's PERMIT_TYPEHASH.
	PermitTypes = []TypedDataField{
		{Name: "owner", Type: "address"},
		{Name: "spender", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}
)

// GetEIP2612EIP712Types returns the complete EIP-712 types map for permit signing.
func GetEIP2612EIP712Types() map[string][]TypedDataField {
	return map[string][]TypedDataField{
		"EIP712Domain":    EIP712DomainTypes,
		PermitPrimaryType: PermitTypes,
	}
}

// GetChainID looks up the chain id of a named network.
func GetChainID(network string) (*big.Int, bool) {
	cfg, ok := NetworkConfigs[network]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(cfg.ChainID), true
}
