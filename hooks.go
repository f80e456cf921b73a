package technostore

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ============================================================================
// Hook Context Types
// ============================================================================

// PurchaseContext is passed to purchase hooks
type PurchaseContext struct {
	Ctx       context.Context
	Buyer     common.Address
	Index     int
	Params    PermitParams
	Height    uint64
	Timestamp time.Time
}

// PurchaseResultContext contains a committed purchase and its context
type PurchaseResultContext struct {
	PurchaseContext
	Receipt  PurchaseReceipt
	Duration time.Duration
}

// PurchaseFailureContext contains a failed purchase and its context
type PurchaseFailureContext struct {
	PurchaseContext
	Error    error
	Duration time.Duration
}

// RefundContext is passed to refund hooks
type RefundContext struct {
	Ctx       context.Context
	Buyer     common.Address
	Index     int
	Height    uint64
	Timestamp time.Time
}

// RefundResultContext contains a committed refund and its context
type RefundResultContext struct {
	RefundContext
	Receipt  RefundReceipt
	Duration time.Duration
}

// RefundFailureContext contains a failed refund and its context
type RefundFailureContext struct {
	RefundContext
	Error    error
	Duration time.Duration
}

// ============================================================================
// Hook Function Types
// ============================================================================

// BeforeHookResult is returned by a "before" hook.
// If Abort is true, the call fails with HookAborted and the given Reason.
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// BeforePurchaseHook runs before any purchase check. An error aborts the call.
type BeforePurchaseHook func(PurchaseContext) (*BeforeHookResult, error)

// AfterPurchaseHook runs after a purchase is committed.
// Errors are ignored; the purchase stands.
type AfterPurchaseHook func(PurchaseResultContext) error

// OnPurchaseFailureHook observes a failed purchase. It cannot recover it.
type OnPurchaseFailureHook func(PurchaseFailureContext) error

// BeforeRefundHook runs before any refund check. An error aborts the call.
type BeforeRefundHook func(RefundContext) (*BeforeHookResult, error)

// AfterRefundHook runs after a refund is committed.
type AfterRefundHook func(RefundResultContext) error

// OnRefundFailureHook observes a failed refund.
type OnRefundFailureHook func(RefundFailureContext) error

type hooks struct {
	beforePurchase    []BeforePurchaseHook
	afterPurchase     []AfterPurchaseHook
	onPurchaseFailure []OnPurchaseFailureHook
	beforeRefund      []BeforeRefundHook
	afterRefund       []AfterRefundHook
	onRefundFailure   []OnRefundFailureHook
}

// ============================================================================
// Hook Registration Methods
// ============================================================================
//
// Hooks are registered while wiring the store, before it serves calls.

func (s *Store) OnBeforePurchase(hook BeforePurchaseHook) *Store {
	s.hooks.beforePurchase = append(s.hooks.beforePurchase, hook)
	return s
}

func (s *Store) OnAfterPurchase(hook AfterPurchaseHook) *Store {
	s.hooks.afterPurchase = append(s.hooks.afterPurchase, hook)
	return s
}

func (s *Store) OnPurchaseFailure(hook OnPurchaseFailureHook) *Store {
	s.hooks.onPurchaseFailure = append(s.hooks.onPurchaseFailure, hook)
	return s
}

func (s *Store) OnBeforeRefund(hook BeforeRefundHook) *Store {
	s.hooks.beforeRefund = append(s.hooks.beforeRefund, hook)
	return s
}

func (s *Store) OnAfterRefund(hook AfterRefundHook) *Store {
	s.hooks.afterRefund = append(s.hooks.afterRefund, hook)
	return s
}

func (s *Store) OnRefundFailure(hook OnRefundFailureHook) *Store {
	s.hooks.onRefundFailure = append(s.hooks.onRefundFailure, hook)
	return s
}

func abortError(result *BeforeHookResult, err error) *StoreError {
	if err != nil {
		return wrapStoreError(ErrCodeHookAborted, "before hook failed", err, nil)
	}
	if result != nil && result.Abort {
		return NewStoreError(ErrCodeHookAborted, result.Reason, nil)
	}
	return nil
}
