package idempotency

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/technostore/technostore/go/node"
	evmsigners "github.com/technostore/technostore/go/signers/evm"
)

type countingSubmitter struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (c *countingSubmitter) Submit(ctx context.Context, tx *node.Tx) (*node.Receipt, error) {
	n := c.calls.Add(1)
	if c.release != nil {
		<-c.release
	}
	if c.err != nil {
		return nil, c.err
	}
	return &node.Receipt{TxHash: tx.Hash(), Height: uint64(n), Status: node.StatusSuccess}, nil
}

func testTx(nonce uint64) *node.Tx {
	return &node.Tx{
		From:      common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		Nonce:     nonce,
		Method:    node.MethodRefundProduct,
		Args:      []byte(`{"index":0}`),
		Signature: []byte{1, 2, 3},
	}
}

func TestDefaultKeyGenerator(t *testing.T) {
	key1 := DefaultKeyGenerator(testTx(0))
	key2 := DefaultKeyGenerator(testTx(1))
	key3 := DefaultKeyGenerator(testTx(0))

	if key1 != key3 {
		t.Errorf("Expected same tx to produce same key, got %s and %s", key1, key3)
	}
	if key1 == key2 {
		t.Error("Expected different txs to produce different keys")
	}
}

func TestSubmitCachesReceipt(t *testing.T) {
	inner := &countingSubmitter{}
	s := Wrap(inner)

	first, err := s.Submit(context.Background(), testTx(0))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Submit(context.Background(), testTx(0))
	if err != nil {
		t.Fatal(err)
	}

	if inner.calls.Load() != 1 {
		t.Fatalf("Expected 1 inner call, got %d", inner.calls.Load())
	}
	if first != second {
		t.Error("Expected the cached receipt to be returned")
	}

	if _, err := s.Submit(context.Background(), testTx(1)); err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 2 {
		t.Fatalf("Expected a different tx to be submitted, got %d calls", inner.calls.Load())
	}
}

func TestSubmitDoesNotCacheErrors(t *testing.T) {
	inner := &countingSubmitter{err: node.ErrNonceMismatch}
	s := Wrap(inner)

	for i := 0; i < 2; i++ {
		if _, err := s.Submit(context.Background(), testTx(0)); !errors.Is(err, node.ErrInvalidTx) {
			t.Fatalf("Expected ErrInvalidTx, got %v", err)
		}
	}
	if inner.calls.Load() != 2 {
		t.Fatalf("Expected failures to be retried, got %d calls", inner.calls.Load())
	}
}

func TestSubmitConcurrentDuplicates(t *testing.T) {
	inner := &countingSubmitter{release: make(chan struct{})}
	s := Wrap(inner)

	const n = 5
	var wg sync.WaitGroup
	receipts := make([]*node.Receipt, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipts[i], errs[i] = s.Submit(context.Background(), testTx(0))
		}(i)
	}

	// Let every goroutine reach the store before releasing the first.
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	if inner.calls.Load() != 1 {
		t.Fatalf("Expected 1 inner call, got %d", inner.calls.Load())
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("submission %d failed: %v", i, errs[i])
		}
		if receipts[i] != receipts[0] {
			t.Fatalf("submission %d got a different receipt", i)
		}
	}
}

func TestWaitRespectsContext(t *testing.T) {
	inner := &countingSubmitter{release: make(chan struct{})}
	s := Wrap(inner)
	defer close(inner.release)

	go func() { _, _ = s.Submit(context.Background(), testTx(0)) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Submit(ctx, testTx(0)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}

func TestExpiredReceiptIsResubmitted(t *testing.T) {
	inner := &countingSubmitter{}
	s := Wrap(inner, WithTTL(time.Millisecond))

	if _, err := s.Submit(context.Background(), testTx(0)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := s.Submit(context.Background(), testTx(0)); err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 2 {
		t.Fatalf("Expected expired receipt to be resubmitted, got %d calls", inner.calls.Load())
	}
}

func TestRetryAgainstNode(t *testing.T) {
	ctx := context.Background()
	owner, err := evmsigners.NewClientSignerFromPrivateKey("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatal(err)
	}
	n, err := node.New(ctx, node.DefaultGenesis(owner.CommonAddress()))
	if err != nil {
		t.Fatal(err)
	}
	s := Wrap(n)

	tx, err := node.NewTx(owner.CommonAddress(), 0, node.MethodAddProduct, node.AddProductArgs{Name: "Keyboard", Quantity: 10, Price: "50"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Sign(ctx, owner); err != nil {
		t.Fatal(err)
	}

	first, err := s.Submit(ctx, tx)
	if err != nil {
		t.Fatal(err)
	}
	// Without deduplication this would be a nonce mismatch.
	second, err := s.Submit(ctx, tx)
	if err != nil {
		t.Fatal(err)
	}
	if first.TxHash != second.TxHash || n.Height() != 1 {
		t.Fatal("Expected the retry to return the first receipt without mining")
	}

	p, err := n.Product(0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Quantity != 10 || p.Price.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("unexpected product %+v", p)
	}
}
