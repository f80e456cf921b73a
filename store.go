package technostore

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Store is the marketplace engine: an owner-controlled catalog, purchase
// records and buyer rosters, settled in a permit-capable Asset.
//
// A Store has no locking of its own. The ledger environment (see package
// node) runs each call to completion before starting the next.
type Store struct {
	owner   common.Address
	address common.Address
	asset   Asset
	clock   Clock
	policy  RefundPolicy

	names    []string
	products map[string]*product

	// purchases holds the open purchase height per (product, buyer). A key
	// present with value 0 is a buyer who refunded; presence means the buyer
	// is on the product's roster.
	purchases map[purchaseKey]uint64
	rosters   map[string][]common.Address

	events *eventLog
	hooks  hooks
}

type product struct {
	index    int
	name     string
	quantity uint64
	price    *big.Int
}

type purchaseKey struct {
	product string
	buyer   common.Address
}

// Option configures a Store.
type Option func(*Store)

// WithRefundPolicy sets the refund policy.
//
// Default: PolicyV1
func WithRefundPolicy(policy RefundPolicy) Option {
	return func(s *Store) {
		s.policy = policy
	}
}

// NewStore creates an empty store owned by owner. address is the store's
// own ledger identity: it is the permit spender and holds collected payments.
func NewStore(owner, address common.Address, asset Asset, clock Clock, opts ...Option) (*Store, error) {
	if asset == nil {
		return nil, errors.New("asset is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if address == (common.Address{}) {
		return nil, errors.New("store address is required")
	}

	s := &Store{
		owner:     owner,
		address:   address,
		asset:     asset,
		clock:     clock,
		policy:    PolicyV1,
		products:  make(map[string]*product),
		purchases: make(map[purchaseKey]uint64),
		rosters:   make(map[string][]common.Address),
		events:    newEventLog(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.policy.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Owner returns the identity allowed to edit the catalog.
func (s *Store) Owner() common.Address { return s.owner }

// Address returns the store's ledger address.
func (s *Store) Address() common.Address { return s.address }

// Asset returns the asset products are priced in.
func (s *Store) Asset() Asset { return s.asset }

// Policy returns the refund policy in force.
func (s *Store) Policy() RefundPolicy { return s.policy }

// Height returns the current ledger height.
func (s *Store) Height() uint64 { return s.clock.Height() }

// Count returns the number of products in the catalog.
func (s *Store) Count() int {
	return len(s.names)
}

// NameAt returns the name of the product at index.
func (s *Store) NameAt(index int) (string, error) {
	p, err := s.productAt(index)
	if err != nil {
		return "", err
	}
	return p.name, nil
}

// QuantityOf returns the remaining stock of name.
func (s *Store) QuantityOf(name string) (uint64, error) {
	p, err := s.productByName(name)
	if err != nil {
		return 0, err
	}
	return p.quantity, nil
}

// PriceOf returns the unit price of name.
func (s *Store) PriceOf(name string) (*big.Int, error) {
	p, err := s.productByName(name)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(p.price), nil
}

// Product returns the catalog entry for name.
func (s *Store) Product(name string) (ProductInfo, error) {
	p, err := s.productByName(name)
	if err != nil {
		return ProductInfo{}, err
	}
	return p.info(), nil
}

// ProductAt returns the catalog entry at index.
func (s *Store) ProductAt(index int) (ProductInfo, error) {
	p, err := s.productAt(index)
	if err != nil {
		return ProductInfo{}, err
	}
	return p.info(), nil
}

// Products returns the catalog in insertion order.
func (s *Store) Products() []ProductInfo {
	out := make([]ProductInfo, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.products[name].info())
	}
	return out
}

// BuyersOf returns everyone who ever bought name, in first-purchase order.
func (s *Store) BuyersOf(name string) ([]common.Address, error) {
	if _, err := s.productByName(name); err != nil {
		return nil, err
	}
	return append([]common.Address{}, s.rosters[name]...), nil
}

// PurchaseHeight returns the height of buyer's open purchase of name, or 0.
func (s *Store) PurchaseHeight(name string, buyer common.Address) (uint64, error) {
	if _, err := s.productByName(name); err != nil {
		return 0, err
	}
	return s.purchases[purchaseKey{product: name, buyer: buyer}], nil
}

func (s *Store) productAt(index int) (*product, error) {
	if index < 0 || index >= len(s.names) {
		return nil, NewStoreError(ErrCodeIndexOutOfRange, "index out of range", map[string]interface{}{
			"index": index,
			"count": len(s.names),
		})
	}
	return s.products[s.names[index]], nil
}

func (s *Store) productByName(name string) (*product, error) {
	p, ok := s.products[name]
	if !ok {
		return nil, NewStoreError(ErrCodeProductNotFound, "product not found", map[string]interface{}{
			"name": name,
		})
	}
	return p, nil
}

func (p *product) info() ProductInfo {
	return ProductInfo{
		Index:    p.index,
		Name:     p.name,
		Quantity: p.quantity,
		Price:    new(big.Int).Set(p.price),
	}
}
