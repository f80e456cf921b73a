package node

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	technostore "github.com/technostore/technostore/go"
	"github.com/technostore/technostore/go/evm"
)

// Height returns the current ledger height.
func (n *Node) Height() uint64 {
	return n.chain.Height()
}

// Info summarizes the store and its token.
func (n *Node) Info() (StoreInfo, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	sep, err := n.token.DomainSeparator()
	if err != nil {
		return StoreInfo{}, err
	}
	return StoreInfo{
		Owner:   n.store.Owner(),
		Address: n.store.Address(),
		Token: TokenInfo{
			Name:            n.token.Name(),
			Symbol:          n.token.Symbol(),
			Address:         n.token.Address(),
			Domain:          n.token.Domain(),
			DomainSeparator: evm.BytesToHex(sep),
			TotalSupply:     n.token.TotalSupply(),
		},
		Height:   n.chain.Height(),
		Policy:   n.store.Policy(),
		Products: n.store.Count(),
	}, nil
}

// Products lists the catalog in insertion order.
func (n *Node) Products() []technostore.ProductInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.store.Products()
}

// Product returns the product at index.
func (n *Node) Product(index int) (technostore.ProductInfo, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.store.ProductAt(index)
}

// Buyers returns the roster of the product at index.
func (n *Node) Buyers(index int) ([]common.Address, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	name, err := n.store.NameAt(index)
	if err != nil {
		return nil, err
	}
	return n.store.BuyersOf(name)
}

// PurchaseHeight returns the height of buyer's open purchase of the product
// at index, or 0.
func (n *Node) PurchaseHeight(index int, buyer common.Address) (uint64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	name, err := n.store.NameAt(index)
	if err != nil {
		return 0, err
	}
	return n.store.PurchaseHeight(name, buyer)
}

// PermitRequest returns the permit owner must sign to buy the product at
// index before deadline.
func (n *Node) PermitRequest(ctx context.Context, index int, owner common.Address, deadline *big.Int) (PermitRequest, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	p, err := n.store.ProductAt(index)
	if err != nil {
		return PermitRequest{}, err
	}
	nonce, err := n.token.Nonces(ctx, owner)
	if err != nil {
		return PermitRequest{}, err
	}
	digest, err := n.store.PermitHash(ctx, owner, p.Price, deadline)
	if err != nil {
		return PermitRequest{}, err
	}
	return PermitRequest{
		Digest:   evm.BytesToHex(digest),
		Owner:    owner,
		Spender:  n.store.Address(),
		Value:    p.Price,
		Nonce:    nonce,
		Deadline: deadline,
		Domain:   n.token.Domain(),
	}, nil
}

// Account returns who's token balance, permit nonce and transaction nonce.
func (n *Node) Account(ctx context.Context, who common.Address) (Account, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	balance, err := n.token.BalanceOf(ctx, who)
	if err != nil {
		return Account{}, err
	}
	nonce, err := n.token.Nonces(ctx, who)
	if err != nil {
		return Account{}, err
	}
	return Account{
		Address:     who,
		Balance:     balance,
		PermitNonce: nonce,
		TxNonce:     n.accounts[who],
	}, nil
}

// Events returns events with Seq >= from.
func (n *Node) Events(from uint64) []technostore.Event {
	return n.store.Events(from)
}

// Subscribe streams events emitted after the call until ctx ends.
func (n *Node) Subscribe(ctx context.Context) <-chan technostore.Event {
	ch := n.store.Subscribe(ctx)
	n.metrics.subscribers.Inc()
	go func() {
		<-ctx.Done()
		n.metrics.subscribers.Dec()
	}()
	return ch
}
