package technostore

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/technostore/technostore/go/evm"
	evmsigners "github.com/technostore/technostore/go/signers/evm"
	"github.com/technostore/technostore/go/token"
)

// failingAsset refuses every TransferFrom after the permit succeeded.
type failingAsset struct {
	*token.Ledger
}

func (failingAsset) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error {
	return token.ErrInsufficientBalance
}

func (failingAsset) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return token.ErrInsufficientBalance
}

func TestBuyProduct(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Keyboard", 10, 50)
	f.chain.MineTo(7)

	buyer := f.buyer.CommonAddress()
	receipt, err := f.store.BuyProduct(context.Background(), buyer, 0, f.permit(t, f.buyer, 50, 100))
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Product != "Keyboard" || receipt.Height != 7 || receipt.Amount.Int64() != 50 || receipt.Buyer != buyer {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	if q, _ := f.store.QuantityOf("Keyboard"); q != 9 {
		t.Fatalf("expected quantity 9, got %d", q)
	}
	if got := f.balance(t, buyer); got != 950 {
		t.Fatalf("expected buyer balance 950, got %d", got)
	}
	if got := f.balance(t, storeAddress); got != 50 {
		t.Fatalf("expected store balance 50, got %d", got)
	}
	if h, _ := f.store.PurchaseHeight("Keyboard", buyer); h != 7 {
		t.Fatalf("expected purchase height 7, got %d", h)
	}
	buyers, _ := f.store.BuyersOf("Keyboard")
	if len(buyers) != 1 || buyers[0] != buyer {
		t.Fatalf("unexpected roster %v", buyers)
	}

	// The permit allowance is fully spent.
	allowance, _ := f.tok.Allowance(context.Background(), buyer, storeAddress)
	if allowance.Sign() != 0 {
		t.Fatalf("expected no leftover allowance, got %s", allowance)
	}

	last := f.store.Events(0)
	if e := last[len(last)-1]; e.Kind != EventProductBought || e.Buyer != buyer || e.Height != 7 {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestBuyProductTwice(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Keyboard", 10, 50)
	ctx := context.Background()
	buyer := f.buyer.CommonAddress()

	if _, err := f.store.BuyProduct(ctx, buyer, 0, f.permit(t, f.buyer, 50, 100)); err != nil {
		t.Fatal(err)
	}

	_, err := f.store.BuyProduct(ctx, buyer, 0, f.permit(t, f.buyer, 50, 100))
	expectCode(t, err, ErrProductAlreadyBought)

	if q, _ := f.store.QuantityOf("Keyboard"); q != 9 {
		t.Fatalf("expected quantity 9, got %d", q)
	}
	if got := f.balance(t, buyer); got != 950 {
		t.Fatalf("expected buyer balance 950, got %d", got)
	}
}

func TestBuyProductOutOfStock(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Keyboard", 1, 50)
	ctx := context.Background()

	if _, err := f.store.BuyProduct(ctx, f.owner.CommonAddress(), 0, f.permit(t, f.owner, 50, 100)); err != nil {
		t.Fatal(err)
	}

	buyer := f.buyer.CommonAddress()
	storeBefore := f.balance(t, storeAddress)
	_, err := f.store.BuyProduct(ctx, buyer, 0, f.permit(t, f.buyer, 50, 100))
	expectCode(t, err, ErrInsufficientAmount)

	if got := f.balance(t, buyer); got != 1000 {
		t.Fatalf("buyer balance changed to %d", got)
	}
	if got := f.balance(t, storeAddress); got != storeBefore {
		t.Fatalf("store balance changed to %d", got)
	}
	nonce, _ := f.tok.Nonces(ctx, buyer)
	if nonce.Sign() != 0 {
		t.Fatal("permit nonce must not be consumed")
	}
}

func TestBuyProductPreconditions(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Keyboard", 10, 50)
	ctx := context.Background()
	buyer := f.buyer.CommonAddress()

	t.Run("index out of range", func(t *testing.T) {
		_, err := f.store.BuyProduct(ctx, buyer, 3, f.permit(t, f.buyer, 50, 100))
		expectCode(t, err, ErrIndexOutOfRange)
	})

	t.Run("amount below price", func(t *testing.T) {
		_, err := f.store.BuyProduct(ctx, buyer, 0, f.permit(t, f.buyer, 49, 100))
		expectCode(t, err, ErrInvalidInputs)
	})

	t.Run("amount above price", func(t *testing.T) {
		_, err := f.store.BuyProduct(ctx, buyer, 0, f.permit(t, f.buyer, 51, 100))
		expectCode(t, err, ErrInvalidInputs)
	})

	t.Run("missing deadline", func(t *testing.T) {
		params := f.permit(t, f.buyer, 50, 100)
		params.Deadline = nil
		_, err := f.store.BuyProduct(ctx, buyer, 0, params)
		expectCode(t, err, ErrInvalidInputs)
	})

	if got := f.balance(t, buyer); got != 1000 {
		t.Fatalf("buyer balance changed to %d", got)
	}
}

func TestBuyProductExpiredPermit(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Keyboard", 10, 50)
	f.chain.MineTo(100)
	ctx := context.Background()
	buyer := f.buyer.CommonAddress()

	_, err := f.store.BuyProduct(ctx, buyer, 0, f.permit(t, f.buyer, 50, 99))
	expectCode(t, err, ErrPermitExpired)
	if !errors.Is(err, evm.ErrExpiredSignature) {
		t.Fatalf("expected asset cause to be kept, got %v", err)
	}

	nonce, _ := f.tok.Nonces(ctx, buyer)
	if nonce.Sign() != 0 {
		t.Fatal("expired permit must not consume the nonce")
	}
	if q, _ := f.store.QuantityOf("Keyboard"); q != 10 {
		t.Fatalf("quantity changed to %d", q)
	}

	// Deadline equal to the current height is still valid.
	if _, err := f.store.BuyProduct(ctx, buyer, 0, f.permit(t, f.buyer, 50, 100)); err != nil {
		t.Fatal(err)
	}
}

func TestBuyProductInvalidPermit(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Keyboard", 10, 50)
	ctx := context.Background()
	buyer := f.buyer.CommonAddress()

	t.Run("signed by someone else", func(t *testing.T) {
		intruder, err := evmsigners.GenerateClientSigner()
		if err != nil {
			t.Fatal(err)
		}
		_, err = f.store.BuyProduct(ctx, buyer, 0, f.permit(t, intruder, 50, 100))
		expectCode(t, err, ErrPermitInvalid)
	})

	t.Run("signed for a different deadline", func(t *testing.T) {
		params := f.permit(t, f.buyer, 50, 100)
		params.Deadline = big.NewInt(101)
		_, err := f.store.BuyProduct(ctx, buyer, 0, params)
		expectCode(t, err, ErrPermitInvalid)
	})

	t.Run("replayed signature", func(t *testing.T) {
		f.addProduct(t, "Mouse", 10, 50)
		params := f.permit(t, f.buyer, 50, 100)
		if _, err := f.store.BuyProduct(ctx, buyer, 1, params); err != nil {
			t.Fatal(err)
		}
		_, err := f.store.BuyProduct(ctx, buyer, 0, params)
		expectCode(t, err, ErrPermitInvalid)
	})

	if h, _ := f.store.PurchaseHeight("Keyboard", buyer); h != 0 {
		t.Fatal("invalid permits must not open a purchase")
	}
}

func TestBuyProductTransferFailureReverts(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Keyboard", 10, 50)
	ctx := context.Background()
	buyer := f.buyer.CommonAddress()

	store, err := NewStore(f.owner.CommonAddress(), storeAddress, failingAsset{f.tok}, f.chain)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddProduct(ctx, f.owner.CommonAddress(), "Keyboard", 10, big.NewInt(50)); err != nil {
		t.Fatal(err)
	}

	_, err = store.BuyProduct(ctx, buyer, 0, f.permit(t, f.buyer, 50, 100))
	expectCode(t, err, ErrTransferFailed)

	nonce, _ := f.tok.Nonces(ctx, buyer)
	if nonce.Sign() != 0 {
		t.Fatal("permit nonce must be reverted")
	}
	allowance, _ := f.tok.Allowance(ctx, buyer, storeAddress)
	if allowance.Sign() != 0 {
		t.Fatal("permit allowance must be reverted")
	}
	if q, _ := store.QuantityOf("Keyboard"); q != 10 {
		t.Fatalf("quantity changed to %d", q)
	}
	if buyers, _ := store.BuyersOf("Keyboard"); len(buyers) != 0 {
		t.Fatal("roster must not change")
	}
}

func TestBuyProductAtGenesisHeight(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Keyboard", 10, 50)

	genesis, err := NewStore(f.owner.CommonAddress(), storeAddress, f.tok, zeroClock{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := genesis.AddProduct(context.Background(), f.owner.CommonAddress(), "Keyboard", 1, big.NewInt(50)); err != nil {
		t.Fatal(err)
	}
	_, err = genesis.BuyProduct(context.Background(), f.buyer.CommonAddress(), 0, f.permit(t, f.buyer, 50, 100))
	expectCode(t, err, ErrInvalidInputs)
}

type zeroClock struct{}

func (zeroClock) Height() uint64 { return 0 }

func TestPermitHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.buyer.CommonAddress()

	digest, err := f.store.PermitHash(ctx, buyer, big.NewInt(50), big.NewInt(100))
	if err != nil {
		t.Fatal(err)
	}

	params := f.permit(t, f.buyer, 50, 100)
	signer, err := evm.ECDSARecoverer{}.RecoverIdentity(digest, params.Signature)
	if err != nil {
		t.Fatal(err)
	}
	if signer != buyer {
		t.Fatalf("digest recovers to %s, want %s", signer.Hex(), buyer.Hex())
	}
}
