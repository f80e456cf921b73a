package node

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	technostore "github.com/technostore/technostore/go"
	"github.com/technostore/technostore/go/evm"
	"github.com/technostore/technostore/go/token"
)

// Addresses a fresh hardhat node assigns to the first two deployments.
var (
	DefaultTokenAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	DefaultStoreAddress = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

// DefaultSupply is minted to the owner when no balances are configured.
var DefaultSupply = big.NewInt(10000)

// Genesis is the initial chain state.
type Genesis struct {
	Owner        common.Address
	StoreAddress common.Address
	Height       uint64
	Token        token.Config
	Balances     map[common.Address]*big.Int
	Policy       technostore.RefundPolicy
}

// DefaultGenesis mirrors a local dev deployment: TechnoToken on chain 31337,
// DefaultSupply minted to owner, refund policy v1.
func DefaultGenesis(owner common.Address) Genesis {
	return Genesis{
		Owner:        owner,
		StoreAddress: DefaultStoreAddress,
		Token: token.Config{
			Name:    "TechnoToken",
			Symbol:  "TT",
			Version: evm.DefaultTokenVersion,
			ChainID: new(big.Int).Set(evm.ChainIDHardhat),
			Address: DefaultTokenAddress,
		},
		Balances: map[common.Address]*big.Int{
			owner: new(big.Int).Set(DefaultSupply),
		},
		Policy: technostore.PolicyV1,
	}
}

// Validate checks the genesis for missing identities.
func (g Genesis) Validate() error {
	if g.Owner == (common.Address{}) {
		return errors.New("genesis owner is required")
	}
	if g.StoreAddress == (common.Address{}) {
		return errors.New("genesis store address is required")
	}
	if g.Token.Address == (common.Address{}) {
		return errors.New("genesis token address is required")
	}
	if g.Token.Name == "" {
		return errors.New("genesis token name is required")
	}
	if g.Token.Address == g.StoreAddress {
		return errors.New("token and store addresses must differ")
	}
	for addr, v := range g.Balances {
		if v == nil || v.Sign() < 0 {
			return errors.New("genesis balance of " + addr.Hex() + " is invalid")
		}
	}
	return nil
}
