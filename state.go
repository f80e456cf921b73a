package technostore

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// PurchaseRecord is one (product, buyer) entry. Height 0 means the buyer
// refunded and has no open purchase.
type PurchaseRecord struct {
	Index  int            `json:"index"`
	Buyer  common.Address `json:"buyer"`
	Height uint64         `json:"height"`
}

// State is a snapshot of everything a Store holds, used for persistence.
// Rosters is indexed by product index.
type State struct {
	Owner     common.Address     `json:"owner"`
	Address   common.Address     `json:"address"`
	Policy    RefundPolicy       `json:"policy"`
	Products  []ProductInfo      `json:"products"`
	Purchases []PurchaseRecord   `json:"purchases"`
	Rosters   [][]common.Address `json:"rosters"`
	Events    []Event            `json:"events"`
}

// State exports the store's contents. Purchases are sorted by index, then buyer.
func (s *Store) State() State {
	st := State{
		Owner:     s.owner,
		Address:   s.address,
		Policy:    s.policy,
		Products:  s.Products(),
		Purchases: make([]PurchaseRecord, 0, len(s.purchases)),
		Rosters:   make([][]common.Address, len(s.names)),
		Events:    s.events.since(1),
	}
	for key, height := range s.purchases {
		st.Purchases = append(st.Purchases, PurchaseRecord{
			Index:  s.products[key.product].index,
			Buyer:  key.buyer,
			Height: height,
		})
	}
	sort.Slice(st.Purchases, func(i, j int) bool {
		a, b := st.Purchases[i], st.Purchases[j]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.Buyer.Cmp(b.Buyer) < 0
	})
	for i, name := range s.names {
		st.Rosters[i] = append([]common.Address{}, s.rosters[name]...)
	}
	return st
}

// Restore replaces the store's catalog, purchases, rosters and events with
// st. Owner, address and policy must match the store's own.
func (s *Store) Restore(st State) error {
	if st.Owner != s.owner || st.Address != s.address {
		return fmt.Errorf("state belongs to store %s owned by %s", st.Address.Hex(), st.Owner.Hex())
	}
	if st.Policy != s.policy {
		return fmt.Errorf("state was written under refund policy v%d, store runs v%d", st.Policy.Version, s.policy.Version)
	}

	names := make([]string, 0, len(st.Products))
	products := make(map[string]*product, len(st.Products))
	for i, info := range st.Products {
		if info.Index != i {
			return fmt.Errorf("product %q stored at index %d, expected %d", info.Name, info.Index, i)
		}
		if info.Name == "" || info.Price == nil || info.Price.Sign() <= 0 {
			return fmt.Errorf("product %d is malformed", i)
		}
		if _, dup := products[info.Name]; dup {
			return fmt.Errorf("duplicate product %q", info.Name)
		}
		products[info.Name] = &product{
			index:    i,
			name:     info.Name,
			quantity: info.Quantity,
			price:    new(big.Int).Set(info.Price),
		}
		names = append(names, info.Name)
	}

	purchases := make(map[purchaseKey]uint64, len(st.Purchases))
	for _, rec := range st.Purchases {
		if rec.Index < 0 || rec.Index >= len(names) {
			return fmt.Errorf("purchase references unknown product index %d", rec.Index)
		}
		purchases[purchaseKey{product: names[rec.Index], buyer: rec.Buyer}] = rec.Height
	}

	if len(st.Rosters) > len(names) {
		return fmt.Errorf("%d rosters for %d products", len(st.Rosters), len(names))
	}
	rosters := make(map[string][]common.Address, len(st.Rosters))
	for i, roster := range st.Rosters {
		name := names[i]
		seen := make(map[common.Address]struct{}, len(roster))
		for _, buyer := range roster {
			if _, dup := seen[buyer]; dup {
				return fmt.Errorf("buyer %s listed twice for %q", buyer.Hex(), name)
			}
			seen[buyer] = struct{}{}
			if _, ok := purchases[purchaseKey{product: name, buyer: buyer}]; !ok {
				return fmt.Errorf("buyer %s on roster of %q has no purchase record", buyer.Hex(), name)
			}
		}
		if len(roster) > 0 {
			rosters[name] = append([]common.Address{}, roster...)
		}
	}
	for key := range purchases {
		if !containsAddress(rosters[key.product], key.buyer) {
			return fmt.Errorf("purchase by %s of %q missing from roster", key.buyer.Hex(), key.product)
		}
	}

	for i, e := range st.Events {
		if e.Seq != uint64(i)+1 {
			return fmt.Errorf("event %d has sequence %d", i+1, e.Seq)
		}
	}

	s.names = names
	s.products = products
	s.purchases = purchases
	s.rosters = rosters
	s.events.restore(st.Events)
	return nil
}
