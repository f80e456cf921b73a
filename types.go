package technostore

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/technostore/technostore/go/evm"
)

// ProductInfo is a read-only view of a catalog entry.
type ProductInfo struct {
	Index    int      `json:"index"`
	Name     string   `json:"name"`
	Quantity uint64   `json:"quantity"`
	Price    *big.Int `json:"price"`
}

// PermitParams carries the buyer's signed EIP-2612 authorization.
// Amount must equal the product's unit price.
type PermitParams struct {
	Amount    *big.Int      `json:"amount"`
	Deadline  *big.Int      `json:"deadline"`
	Signature evm.Signature `json:"signature"`
}

// PurchaseReceipt describes a committed purchase.
type PurchaseReceipt struct {
	Product string         `json:"product"`
	Index   int            `json:"index"`
	Buyer   common.Address `json:"buyer"`
	Amount  *big.Int       `json:"amount"`
	Height  uint64         `json:"height"`
}

// RefundReceipt describes a committed refund. Amount is what was paid back.
type RefundReceipt struct {
	Product     string         `json:"product"`
	Index       int            `json:"index"`
	Buyer       common.Address `json:"buyer"`
	Amount      *big.Int       `json:"amount"`
	Height      uint64         `json:"height"`
	PurchasedAt uint64         `json:"purchasedAt"`
}

// RefundPolicy decides how long a purchase stays refundable and how much of
// the price is paid back. Changes to either number get a new Version.
type RefundPolicy struct {
	Version       uint32 `json:"version" yaml:"version"`
	Window        uint64 `json:"window" yaml:"window"`
	RefundPercent uint64 `json:"refundPercent" yaml:"refundPercent"`
}

// PolicyV1 refunds 80% of the price within 100 blocks of the purchase.
var PolicyV1 = RefundPolicy{
	Version:       1,
	Window:        100,
	RefundPercent: 80,
}

// Validate checks that the policy can be applied.
func (p RefundPolicy) Validate() error {
	if p.RefundPercent > 100 {
		return NewStoreError(ErrCodeInvalidInputs, "refund percent above 100", map[string]interface{}{
			"refundPercent": p.RefundPercent,
		})
	}
	return nil
}

// RefundAmount returns price * RefundPercent / 100, truncated.
func (p RefundPolicy) RefundAmount(price *big.Int) *big.Int {
	amount := new(big.Int).Mul(price, new(big.Int).SetUint64(p.RefundPercent))
	return amount.Quo(amount, big.NewInt(100))
}

// Expired reports whether a purchase made at purchasedAt can no longer be
// refunded at height.
func (p RefundPolicy) Expired(purchasedAt, height uint64) bool {
	if height < purchasedAt {
		return false
	}
	return height-purchasedAt > p.Window
}
