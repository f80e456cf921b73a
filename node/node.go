// Package node runs a TechnoStore on a local ledger: it owns the chain
// height, the token and the store, executes signed transactions one at a
// time and persists the resulting state.
package node

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	logging "github.com/ipfs/go-log/v2"

	technostore "github.com/technostore/technostore/go"
	"github.com/technostore/technostore/go/evm"
	"github.com/technostore/technostore/go/ledger"
	"github.com/technostore/technostore/go/statestore"
	"github.com/technostore/technostore/go/token"
)

var log = logging.Logger("technostore/node")

// Receipt status values
const (
	StatusReverted uint64 = 0
	StatusSuccess  uint64 = 1
)

// Receipt is the outcome of a mined transaction. Exactly one of Product,
// Purchase and Refund is set on success; Error is set when Status is
// StatusReverted.
type Receipt struct {
	TxHash common.Hash    `json:"txHash"`
	From   common.Address `json:"from"`
	Nonce  uint64         `json:"nonce"`
	Method string         `json:"method"`
	Height uint64         `json:"height"`
	Status uint64         `json:"status"`

	Error    *technostore.StoreError      `json:"error,omitempty"`
	Product  *technostore.ProductInfo     `json:"product,omitempty"`
	Purchase *technostore.PurchaseReceipt `json:"purchase,omitempty"`
	Refund   *technostore.RefundReceipt   `json:"refund,omitempty"`
	Events   []technostore.Event          `json:"events"`
}

// Succeeded reports whether the transaction was applied.
func (r *Receipt) Succeeded() bool {
	return r.Status == StatusSuccess
}

// TokenInfo describes the asset the store settles in.
type TokenInfo struct {
	Name            string              `json:"name"`
	Symbol          string              `json:"symbol"`
	Address         common.Address      `json:"address"`
	Domain          evm.TypedDataDomain `json:"domain"`
	DomainSeparator string              `json:"domainSeparator"`
	TotalSupply     *big.Int            `json:"totalSupply"`
}

// StoreInfo summarizes the store.
type StoreInfo struct {
	Owner    common.Address           `json:"owner"`
	Address  common.Address           `json:"address"`
	Token    TokenInfo                `json:"token"`
	Height   uint64                   `json:"height"`
	Policy   technostore.RefundPolicy `json:"policy"`
	Products int                      `json:"products"`
}

// Account is an identity's balance and nonces.
type Account struct {
	Address     common.Address `json:"address"`
	Balance     *big.Int       `json:"balance"`
	PermitNonce *big.Int       `json:"permitNonce"`
	TxNonce     uint64         `json:"txNonce"`
}

// PermitRequest is everything a buyer needs to sign a purchase permit.
type PermitRequest struct {
	Digest   string              `json:"digest"`
	Owner    common.Address      `json:"owner"`
	Spender  common.Address      `json:"spender"`
	Value    *big.Int            `json:"value"`
	Nonce    *big.Int            `json:"nonce"`
	Deadline *big.Int            `json:"deadline"`
	Domain   evm.TypedDataDomain `json:"domain"`
}

// Node serializes access to one store.
type Node struct {
	mu sync.RWMutex

	chain    *ledger.Chain
	token    *token.Ledger
	store    *technostore.Store
	accounts map[common.Address]uint64

	state   *statestore.Store
	metrics *Metrics
}

type options struct {
	state     *statestore.Store
	recoverer evm.Recoverer
}

// Option configures a Node.
type Option func(*options)

// WithStateStore persists state after every transaction and resumes from it
// on start.
func WithStateStore(s *statestore.Store) Option {
	return func(o *options) {
		o.state = s
	}
}

// WithRecoverer sets the signature scheme the token validates permits with.
//
// Default: evm.ECDSARecoverer
func WithRecoverer(r evm.Recoverer) Option {
	return func(o *options) {
		o.recoverer = r
	}
}

// New starts a node. If the state store holds a saved state the node resumes
// from it and only the identities in genesis are used; otherwise genesis
// balances are minted and the initial state is saved.
func New(ctx context.Context, genesis Genesis, opts ...Option) (*Node, error) {
	if err := genesis.Validate(); err != nil {
		return nil, err
	}

	o := &options{recoverer: evm.ECDSARecoverer{}}
	for _, opt := range opts {
		opt(o)
	}

	chain := ledger.NewChain(genesis.Height)
	tok := token.New(genesis.Token, chain, token.WithRecoverer(o.recoverer))

	policy := genesis.Policy
	if policy == (technostore.RefundPolicy{}) {
		policy = technostore.PolicyV1
	}
	store, err := technostore.NewStore(genesis.Owner, genesis.StoreAddress, tok, chain, technostore.WithRefundPolicy(policy))
	if err != nil {
		return nil, err
	}

	n := &Node{
		chain:    chain,
		token:    tok,
		store:    store,
		accounts: make(map[common.Address]uint64),
		state:    o.state,
		metrics:  newMetrics(),
	}

	resumed, err := n.resume(ctx)
	if err != nil {
		return nil, err
	}
	if !resumed {
		for addr, amount := range genesis.Balances {
			if err := tok.Mint(addr, amount); err != nil {
				return nil, fmt.Errorf("mint genesis balance: %w", err)
			}
		}
		tok.Finalise()
		if err := n.persist(ctx); err != nil {
			return nil, err
		}
	}

	n.wireHooks()
	n.metrics.height.Set(float64(chain.Height()))
	for _, p := range store.Products() {
		n.metrics.inventory.WithLabelValues(p.Name).Set(float64(p.Quantity))
	}

	log.Infow("node started",
		"owner", genesis.Owner.Hex(),
		"store", genesis.StoreAddress.Hex(),
		"token", genesis.Token.Address.Hex(),
		"height", chain.Height(),
		"resumed", resumed,
	)
	return n, nil
}

func (n *Node) resume(ctx context.Context) (bool, error) {
	if n.state == nil {
		return false, nil
	}
	snap, ok, err := n.state.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := n.store.Restore(snap.Store); err != nil {
		return false, fmt.Errorf("restore store: %w", err)
	}
	n.token.Restore(snap.Token)
	n.chain.MineTo(snap.Height)
	for addr, nonce := range snap.Accounts {
		n.accounts[addr] = nonce
	}
	return true, nil
}

// Close releases the state store.
func (n *Node) Close() error {
	if n.state == nil {
		return nil
	}
	return n.state.Close()
}

// Metrics returns the node's collectors.
func (n *Node) Metrics() *Metrics {
	return n.metrics
}

// Submit validates, mines and executes tx.
//
// Envelope problems return an error wrapping ErrInvalidTx; nothing is mined.
// Otherwise a block is mined and the sender's nonce consumed whether the
// call succeeds or reverts. A reverted call is reported through the receipt,
// not the error.
func (n *Node) Submit(ctx context.Context, tx *Tx) (*Receipt, error) {
	start := time.Now()
	if tx == nil {
		return nil, fmt.Errorf("%w: empty transaction", ErrInvalidTx)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	call, err := n.prepare(tx)
	if err != nil {
		n.metrics.txs.WithLabelValues(methodLabel(tx.Method), "rejected").Inc()
		log.Debugw("rejected transaction", "from", tx.From.Hex(), "method", tx.Method, "error", err)
		return nil, err
	}

	height := n.chain.Mine()
	n.accounts[tx.From] = tx.Nonce + 1
	lastSeq := n.store.LastEventSeq()

	receipt := &Receipt{
		TxHash: tx.Hash(),
		From:   tx.From,
		Nonce:  tx.Nonce,
		Method: tx.Method,
		Height: height,
		Status: StatusSuccess,
	}

	if err := call(ctx, receipt); err != nil {
		receipt.Status = StatusReverted
		receipt.Error = asStoreError(err)
	}
	n.token.Finalise()
	receipt.Events = n.store.Events(lastSeq + 1)

	status := "success"
	if !receipt.Succeeded() {
		status = "reverted"
	}
	n.metrics.txs.WithLabelValues(tx.Method, status).Inc()
	n.metrics.height.Set(float64(height))

	if err := n.persist(ctx); err != nil {
		log.Errorw("failed to persist state", "height", height, "error", err)
		return receipt, fmt.Errorf("persist state: %w", err)
	}

	n.metrics.txDuration.Observe(time.Since(start).Seconds())
	log.Debugw("executed transaction",
		"tx", receipt.TxHash.Hex(),
		"from", tx.From.Hex(),
		"method", tx.Method,
		"height", height,
		"status", status,
	)
	return receipt, nil
}

type execFunc func(ctx context.Context, receipt *Receipt) error

func (n *Node) prepare(tx *Tx) (execFunc, error) {
	signer, err := tx.Sender()
	if err != nil {
		return nil, err
	}
	if signer != tx.From {
		return nil, fmt.Errorf("%w: recovered %s, from %s", ErrWrongSigner, signer.Hex(), tx.From.Hex())
	}
	if expected := n.accounts[tx.From]; tx.Nonce != expected {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrNonceMismatch, tx.Nonce, expected)
	}

	switch tx.Method {
	case MethodAddProduct:
		var args AddProductArgs
		if err := decodeArgs(tx.Args, &args); err != nil {
			return nil, err
		}
		price, err := parseAmount("price", args.Price)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, r *Receipt) error {
			info, err := n.store.AddProduct(ctx, tx.From, args.Name, args.Quantity, price)
			if err != nil {
				return err
			}
			r.Product = &info
			n.metrics.inventory.WithLabelValues(info.Name).Set(float64(info.Quantity))
			return nil
		}, nil

	case MethodBuyProduct:
		var args BuyProductArgs
		if err := decodeArgs(tx.Args, &args); err != nil {
			return nil, err
		}
		amount, err := parseAmount("amount", args.Amount)
		if err != nil {
			return nil, err
		}
		deadline, err := parseAmount("deadline", args.Deadline)
		if err != nil {
			return nil, err
		}
		params := technostore.PermitParams{Amount: amount, Deadline: deadline, Signature: args.Signature}
		return func(ctx context.Context, r *Receipt) error {
			purchase, err := n.store.BuyProduct(ctx, tx.From, args.Index, params)
			if err != nil {
				return err
			}
			r.Purchase = purchase
			return nil
		}, nil

	case MethodRefundProduct:
		var args RefundProductArgs
		if err := decodeArgs(tx.Args, &args); err != nil {
			return nil, err
		}
		return func(ctx context.Context, r *Receipt) error {
			refund, err := n.store.RefundProduct(ctx, tx.From, args.Index)
			if err != nil {
				return err
			}
			r.Refund = refund
			return nil
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, tx.Method)
	}
}

// MineBlocks advances the chain by count empty blocks.
func (n *Node) MineBlocks(ctx context.Context, count uint64) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	height := n.chain.MineN(count)
	n.metrics.height.Set(float64(height))
	if err := n.persist(ctx); err != nil {
		return height, fmt.Errorf("persist state: %w", err)
	}
	return height, nil
}

func (n *Node) persist(ctx context.Context) error {
	if n.state == nil {
		return nil
	}
	accounts := make(map[common.Address]uint64, len(n.accounts))
	for addr, nonce := range n.accounts {
		accounts[addr] = nonce
	}
	return n.state.Save(ctx, statestore.Snapshot{
		Height:   n.chain.Height(),
		Store:    n.store.State(),
		Token:    n.token.State(),
		Accounts: accounts,
	})
}

func asStoreError(err error) *technostore.StoreError {
	var se *technostore.StoreError
	if errors.As(err, &se) {
		return se
	}
	return technostore.NewStoreError("Reverted", err.Error(), nil)
}

func methodLabel(method string) string {
	switch method {
	case MethodAddProduct, MethodBuyProduct, MethodRefundProduct:
		return method
	default:
		return "unknown"
	}
}
