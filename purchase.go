package technostore

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/technostore/technostore/go/evm"
)

// BuyProduct sells one unit of the product at index to caller, paid through
// the caller's EIP-2612 permit.
//
// Local checks run first (index, stock, open purchase, amount). The asset
// then validates the permit and moves the payment. Local state is committed
// only after the asset succeeded; if the transfer fails after the permit
// consumed its nonce, assets implementing Reverter are rolled back.
func (s *Store) BuyProduct(ctx context.Context, caller common.Address, index int, params PermitParams) (*PurchaseReceipt, error) {
	start := time.Now()
	hookCtx := PurchaseContext{
		Ctx:       ctx,
		Buyer:     caller,
		Index:     index,
		Params:    params,
		Height:    s.clock.Height(),
		Timestamp: start,
	}

	for _, hook := range s.hooks.beforePurchase {
		if err := abortError(hook(hookCtx)); err != nil {
			return nil, err
		}
	}

	receipt, err := s.buy(ctx, caller, index, params)
	if err != nil {
		failureCtx := PurchaseFailureContext{PurchaseContext: hookCtx, Error: err, Duration: time.Since(start)}
		for _, hook := range s.hooks.onPurchaseFailure {
			_ = hook(failureCtx)
		}
		return nil, err
	}

	resultCtx := PurchaseResultContext{PurchaseContext: hookCtx, Receipt: *receipt, Duration: time.Since(start)}
	for _, hook := range s.hooks.afterPurchase {
		_ = hook(resultCtx)
	}
	return receipt, nil
}

func (s *Store) buy(ctx context.Context, caller common.Address, index int, params PermitParams) (*PurchaseReceipt, error) {
	p, err := s.productAt(index)
	if err != nil {
		return nil, err
	}
	if p.quantity < 1 {
		return nil, NewStoreError(ErrCodeInsufficientAmount, "product out of stock", map[string]interface{}{
			"product": p.name,
		})
	}

	key := purchaseKey{product: p.name, buyer: caller}
	if s.purchases[key] != 0 {
		return nil, NewStoreError(ErrCodeProductAlreadyBought, "product already bought", map[string]interface{}{
			"product":     p.name,
			"purchasedAt": s.purchases[key],
		})
	}

	if params.Amount == nil || params.Amount.Cmp(p.price) != 0 {
		return nil, NewStoreError(ErrCodeInvalidInputs, "amount must equal the unit price", map[string]interface{}{
			"product": p.name,
			"price":   p.price.String(),
			"amount":  amountString(params.Amount),
		})
	}
	if params.Deadline == nil || params.Deadline.Sign() < 0 {
		return nil, NewStoreError(ErrCodeInvalidInputs, "deadline is required", nil)
	}

	height := s.clock.Height()
	if height == 0 {
		return nil, NewStoreError(ErrCodeInvalidInputs, "no purchases at genesis height", nil)
	}

	reverter, canRevert := s.asset.(Reverter)
	var snapshot int
	if canRevert {
		snapshot = reverter.Snapshot()
	}

	if err := s.asset.Permit(ctx, caller, s.address, params.Amount, params.Deadline, params.Signature); err != nil {
		if canRevert {
			reverter.RevertToSnapshot(snapshot)
		}
		return nil, permitError(err)
	}
	if err := s.asset.TransferFrom(ctx, s.address, caller, s.address, params.Amount); err != nil {
		if canRevert {
			reverter.RevertToSnapshot(snapshot)
		}
		return nil, wrapStoreError(ErrCodeTransferFailed, "payment transfer failed", err, map[string]interface{}{
			"product": p.name,
		})
	}

	p.quantity--
	if _, seen := s.purchases[key]; !seen {
		s.rosters[p.name] = append(s.rosters[p.name], caller)
	}
	s.purchases[key] = height

	s.emit(EventProductBought, p.name, caller, 0)

	return &PurchaseReceipt{
		Product: p.name,
		Index:   p.index,
		Buyer:   caller,
		Amount:  new(big.Int).Set(params.Amount),
		Height:  height,
	}, nil
}

// PermitHash returns the EIP-712 digest owner must sign to authorize a
// payment of value to this store, using owner's current permit nonce.
func (s *Store) PermitHash(ctx context.Context, owner common.Address, value, deadline *big.Int) ([]byte, error) {
	nonce, err := s.asset.Nonces(ctx, owner)
	if err != nil {
		return nil, err
	}
	return evm.HashPermit(evm.Permit{
		Owner:    owner,
		Spender:  s.address,
		Value:    value,
		Nonce:    nonce,
		Deadline: deadline,
	}, s.asset.Domain())
}
