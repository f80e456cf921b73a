package technostore

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/technostore/technostore/go/evm"
	"github.com/technostore/technostore/go/ledger"
	evmsigners "github.com/technostore/technostore/go/signers/evm"
	"github.com/technostore/technostore/go/token"
)

const (
	deployerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	customerKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

var (
	tokenAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	storeAddress = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

type fixture struct {
	store *Store
	tok   *token.Ledger
	chain *ledger.Chain
	owner *evmsigners.ClientSigner
	buyer *evmsigners.ClientSigner
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	owner, err := evmsigners.NewClientSignerFromPrivateKey(deployerKey)
	if err != nil {
		t.Fatal(err)
	}
	buyer, err := evmsigners.NewClientSignerFromPrivateKey(customerKey)
	if err != nil {
		t.Fatal(err)
	}

	chain := ledger.NewChain(1)
	tok := token.New(token.Config{
		Name:    "TechnoToken",
		Symbol:  "TT",
		Version: "1",
		ChainID: big.NewInt(31337),
		Address: tokenAddress,
	}, chain)
	if err := tok.Mint(owner.CommonAddress(), big.NewInt(10000)); err != nil {
		t.Fatal(err)
	}
	if err := tok.Mint(buyer.CommonAddress(), big.NewInt(1000)); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(owner.CommonAddress(), storeAddress, tok, chain, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{store: store, tok: tok, chain: chain, owner: owner, buyer: buyer}
}

func (f *fixture) addProduct(t *testing.T, name string, quantity uint64, price int64) {
	t.Helper()
	if _, err := f.store.AddProduct(context.Background(), f.owner.CommonAddress(), name, quantity, big.NewInt(price)); err != nil {
		t.Fatalf("AddProduct(%q): %v", name, err)
	}
}

func (f *fixture) permit(t *testing.T, signer *evmsigners.ClientSigner, amount, deadline int64) PermitParams {
	t.Helper()

	nonce, err := f.tok.Nonces(context.Background(), signer.CommonAddress())
	if err != nil {
		t.Fatal(err)
	}
	sig, err := signer.SignPermit(context.Background(), f.tok.Domain(), storeAddress, big.NewInt(amount), nonce, big.NewInt(deadline))
	if err != nil {
		t.Fatal(err)
	}
	return PermitParams{Amount: big.NewInt(amount), Deadline: big.NewInt(deadline), Signature: sig}
}

func (f *fixture) balance(t *testing.T, who common.Address) int64 {
	t.Helper()
	b, err := f.tok.BalanceOf(context.Background(), who)
	if err != nil {
		t.Fatal(err)
	}
	return b.Int64()
}

func expectCode(t *testing.T, err error, sentinel *StoreError) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", sentinel.Code)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected %s, got %v", sentinel.Code, err)
	}
}

func TestNewStoreValidation(t *testing.T) {
	chain := ledger.NewChain(1)
	tok := token.New(token.Config{Name: "T", Address: tokenAddress}, chain)

	if _, err := NewStore(common.Address{}, storeAddress, nil, chain); err == nil {
		t.Fatal("expected error for nil asset")
	}
	if _, err := NewStore(common.Address{}, storeAddress, tok, nil); err == nil {
		t.Fatal("expected error for nil clock")
	}
	if _, err := NewStore(common.Address{}, common.Address{}, tok, chain); err == nil {
		t.Fatal("expected error for zero store address")
	}
	if _, err := NewStore(common.Address{}, storeAddress, tok, chain, WithRefundPolicy(RefundPolicy{Version: 2, RefundPercent: 120})); err == nil {
		t.Fatal("expected error for refund percent above 100")
	}
}

func TestAddProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.owner.CommonAddress()

	info, err := f.store.AddProduct(ctx, owner, "Keyboard", 10, big.NewInt(50))
	if err != nil {
		t.Fatal(err)
	}
	if info.Index != 0 || info.Quantity != 10 || info.Price.Int64() != 50 {
		t.Fatalf("unexpected product %+v", info)
	}

	// Re-adding ignores the new price.
	info, err = f.store.AddProduct(ctx, owner, "Keyboard", 5, big.NewInt(999))
	if err != nil {
		t.Fatal(err)
	}
	if info.Quantity != 15 {
		t.Fatalf("expected quantity 15, got %d", info.Quantity)
	}
	price, err := f.store.PriceOf("Keyboard")
	if err != nil {
		t.Fatal(err)
	}
	if price.Int64() != 50 {
		t.Fatalf("price changed to %s", price)
	}

	f.addProduct(t, "Mouse", 3, 20)
	if f.store.Count() != 2 {
		t.Fatalf("expected 2 products, got %d", f.store.Count())
	}
	name, err := f.store.NameAt(1)
	if err != nil || name != "Mouse" {
		t.Fatalf("NameAt(1) = %q, %v", name, err)
	}

	events := f.store.Events(0)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[1].Kind != EventProductAdded || events[1].Product != "Keyboard" || events[1].Quantity != 5 {
		t.Fatalf("unexpected event %+v", events[1])
	}
}

func TestAddProductInvalidInputs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := f.buyer.CommonAddress()

	tests := []struct {
		name     string
		caller   common.Address
		product  string
		quantity uint64
		price    *big.Int
	}{
		{"zero quantity by owner", f.owner.CommonAddress(), "Keyboard", 0, big.NewInt(50)},
		{"zero price by owner", f.owner.CommonAddress(), "Keyboard", 10, big.NewInt(0)},
		{"zero quantity by stranger", stranger, "Keyboard", 0, big.NewInt(50)},
		{"zero price by stranger", stranger, "Keyboard", 10, big.NewInt(0)},
		{"negative price", f.owner.CommonAddress(), "Keyboard", 10, big.NewInt(-1)},
		{"nil price", f.owner.CommonAddress(), "Keyboard", 10, nil},
		{"empty name", f.owner.CommonAddress(), "", 10, big.NewInt(50)},
		{"price above uint256", f.owner.CommonAddress(), "Keyboard", 10, new(big.Int).Add(evm.MaxUint256(), big.NewInt(1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.store.AddProduct(ctx, tt.caller, tt.product, tt.quantity, tt.price)
			expectCode(t, err, ErrInvalidInputs)
		})
	}

	if f.store.Count() != 0 {
		t.Fatal("failed calls must not create products")
	}
}

func TestAddProductNotOwner(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.AddProduct(context.Background(), f.buyer.CommonAddress(), "Keyboard", 10, big.NewInt(50))
	expectCode(t, err, ErrNotOwner)
	if f.store.Count() != 0 {
		t.Fatal("NotOwner must not create products")
	}
	if len(f.store.Events(0)) != 0 {
		t.Fatal("NotOwner must not emit events")
	}
}

func TestAddProductQuantityOverflow(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Keyboard", ^uint64(0)-1, 50)

	_, err := f.store.AddProduct(context.Background(), f.owner.CommonAddress(), "Keyboard", 2, big.NewInt(50))
	expectCode(t, err, ErrInvalidInputs)

	q, _ := f.store.QuantityOf("Keyboard")
	if q != ^uint64(0)-1 {
		t.Fatalf("quantity changed to %d", q)
	}
}

func TestReads(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "Keyboard", 10, 50)

	if _, err := f.store.NameAt(1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected IndexOutOfRange, got %v", err)
	}
	if _, err := f.store.NameAt(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected IndexOutOfRange, got %v", err)
	}
	if _, err := f.store.PriceOf("Monitor"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ProductNotFound, got %v", err)
	}
	if _, err := f.store.QuantityOf("Monitor"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ProductNotFound, got %v", err)
	}
	if _, err := f.store.BuyersOf("Monitor"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ProductNotFound, got %v", err)
	}

	products := f.store.Products()
	if len(products) != 1 || products[0].Name != "Keyboard" {
		t.Fatalf("unexpected products %+v", products)
	}

	// Returned prices are copies.
	products[0].Price.SetInt64(1)
	price, _ := f.store.PriceOf("Keyboard")
	if price.Int64() != 50 {
		t.Fatal("caller mutated stored price")
	}

	if f.store.Owner() != f.owner.CommonAddress() || f.store.Address() != storeAddress {
		t.Fatal("unexpected identities")
	}
	if f.store.Policy() != PolicyV1 {
		t.Fatal("expected default policy")
	}
}

func TestErrorCode(t *testing.T) {
	err := NewStoreError(ErrCodeNotOwner, "nope", nil)
	if ErrorCode(err) != ErrCodeNotOwner {
		t.Fatalf("unexpected code %q", ErrorCode(err))
	}
	if ErrorCode(errors.New("plain")) != "" {
		t.Fatal("plain errors carry no code")
	}
	if errors.Is(err, ErrPermitInvalid) {
		t.Fatal("codes must differ")
	}
}
