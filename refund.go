package technostore

import (
	"context"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RefundProduct returns caller's open purchase of the product at index and
// pays back the policy's share of the unit price from the store's balance.
// The buyer stays on the product's roster.
func (s *Store) RefundProduct(ctx context.Context, caller common.Address, index int) (*RefundReceipt, error) {
	start := time.Now()
	hookCtx := RefundContext{
		Ctx:       ctx,
		Buyer:     caller,
		Index:     index,
		Height:    s.clock.Height(),
		Timestamp: start,
	}

	for _, hook := range s.hooks.beforeRefund {
		if err := abortError(hook(hookCtx)); err != nil {
			return nil, err
		}
	}

	receipt, err := s.refund(ctx, caller, index)
	if err != nil {
		failureCtx := RefundFailureContext{RefundContext: hookCtx, Error: err, Duration: time.Since(start)}
		for _, hook := range s.hooks.onRefundFailure {
			_ = hook(failureCtx)
		}
		return nil, err
	}

	resultCtx := RefundResultContext{RefundContext: hookCtx, Receipt: *receipt, Duration: time.Since(start)}
	for _, hook := range s.hooks.afterRefund {
		_ = hook(resultCtx)
	}
	return receipt, nil
}

func (s *Store) refund(ctx context.Context, caller common.Address, index int) (*RefundReceipt, error) {
	p, err := s.productAt(index)
	if err != nil {
		return nil, err
	}

	key := purchaseKey{product: p.name, buyer: caller}
	purchasedAt := s.purchases[key]
	if purchasedAt == 0 {
		return nil, NewStoreError(ErrCodeProductNotBought, "no open purchase", map[string]interface{}{
			"product": p.name,
		})
	}

	height := s.clock.Height()
	if s.policy.Expired(purchasedAt, height) {
		return nil, NewStoreError(ErrCodeRefundExpired, "refund window elapsed", map[string]interface{}{
			"product":     p.name,
			"purchasedAt": purchasedAt,
			"height":      height,
			"window":      s.policy.Window,
		})
	}
	if p.quantity == math.MaxUint64 {
		return nil, NewStoreError(ErrCodeInvalidInputs, "quantity overflow", map[string]interface{}{
			"product": p.name,
		})
	}

	amount := s.policy.RefundAmount(p.price)

	reverter, canRevert := s.asset.(Reverter)
	var snapshot int
	if canRevert {
		snapshot = reverter.Snapshot()
	}
	if err := s.asset.Transfer(ctx, s.address, caller, amount); err != nil {
		if canRevert {
			reverter.RevertToSnapshot(snapshot)
		}
		return nil, wrapStoreError(ErrCodeTransferFailed, "refund transfer failed", err, map[string]interface{}{
			"product": p.name,
			"amount":  amount.String(),
		})
	}

	p.quantity++
	s.purchases[key] = 0

	s.emit(EventProductRefunded, p.name, caller, 0)

	return &RefundReceipt{
		Product:     p.name,
		Index:       p.index,
		Buyer:       caller,
		Amount:      amount,
		Height:      height,
		PurchasedAt: purchasedAt,
	}, nil
}
