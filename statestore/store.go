// Package statestore persists node state in a go-datastore.
//
// Every piece of state lives under its own key. Save writes the full snapshot
// in one batch and deletes keys that no longer exist; events are append-only,
// so only those past the last persisted sequence are written:
//
//	/meta
//	/products/<idx>
//	/purchases/<idx>/<buyer>
//	/rosters/<idx>
//	/token/balances/<addr>
//	/token/nonces/<addr>
//	/token/allowances/<owner>/<spender>
//	/accounts/<addr>
//	/events/<seq>
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	logging "github.com/ipfs/go-log/v2"

	technostore "github.com/technostore/technostore/go"
	"github.com/technostore/technostore/go/token"
)

var log = logging.Logger("technostore/statestore")

const schemaVersion = 1

var (
	metaKey         = datastore.NewKey("/meta")
	productsPrefix  = datastore.NewKey("/products")
	purchasesPrefix = datastore.NewKey("/purchases")
	rostersPrefix   = datastore.NewKey("/rosters")
	balancesPrefix  = datastore.NewKey("/token/balances")
	noncesPrefix    = datastore.NewKey("/token/nonces")
	allowPrefix     = datastore.NewKey("/token/allowances")
	accountsPrefix  = datastore.NewKey("/accounts")
	eventsPrefix    = datastore.NewKey("/events")
)

// Snapshot is the full node state at a height.
type Snapshot struct {
	Height   uint64
	Store    technostore.State
	Token    token.State
	Accounts map[common.Address]uint64
}

type meta struct {
	Version     int                      `json:"version"`
	Height      uint64                   `json:"height"`
	Owner       common.Address           `json:"owner"`
	Address     common.Address           `json:"address"`
	Policy      technostore.RefundPolicy `json:"policy"`
	Products    int                      `json:"products"`
	Events      uint64                   `json:"events"`
	TotalSupply string                   `json:"totalSupply"`
}

// Store reads and writes Snapshots.
type Store struct {
	ds datastore.Batching
}

// New wraps ds.
func New(ds datastore.Batching) *Store {
	return &Store{ds: ds}
}

// Close closes the underlying datastore.
func (s *Store) Close() error {
	return s.ds.Close()
}

// Save writes snap in one batch. Keys present in the datastore but absent
// from snap (zeroed balances, spent allowances) are deleted in the same batch.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	prev, err := s.loadMeta(ctx)
	if err != nil && !errors.Is(err, datastore.ErrNotFound) {
		return err
	}

	b, err := s.ds.Batch(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	w := &writer{ctx: ctx, batch: b}

	for _, p := range snap.Store.Products {
		w.put(productsPrefix.ChildString(strconv.Itoa(p.Index)), productRecord{
			Name:     p.Name,
			Quantity: p.Quantity,
			Price:    p.Price.String(),
		})
	}
	for i, roster := range snap.Store.Rosters {
		w.put(rostersPrefix.ChildString(strconv.Itoa(i)), roster)
	}

	purchases := make(map[datastore.Key]struct{}, len(snap.Store.Purchases))
	for _, rec := range snap.Store.Purchases {
		k := purchasesPrefix.ChildString(strconv.Itoa(rec.Index)).ChildString(addrKey(rec.Buyer))
		purchases[k] = struct{}{}
		w.put(k, rec.Height)
	}
	w.prune(s.ds, purchasesPrefix, purchases)

	balances := make(map[datastore.Key]struct{}, len(snap.Token.Balances))
	for addr, v := range snap.Token.Balances {
		k := balancesPrefix.ChildString(addrKey(addr))
		balances[k] = struct{}{}
		w.put(k, v.String())
	}
	w.prune(s.ds, balancesPrefix, balances)

	nonces := make(map[datastore.Key]struct{}, len(snap.Token.Nonces))
	for addr, v := range snap.Token.Nonces {
		k := noncesPrefix.ChildString(addrKey(addr))
		nonces[k] = struct{}{}
		w.put(k, v.String())
	}
	w.prune(s.ds, noncesPrefix, nonces)

	allowances := make(map[datastore.Key]struct{})
	for owner, m := range snap.Token.Allowances {
		for spender, v := range m {
			k := allowPrefix.ChildString(addrKey(owner)).ChildString(addrKey(spender))
			allowances[k] = struct{}{}
			w.put(k, v.String())
		}
	}
	w.prune(s.ds, allowPrefix, allowances)

	for addr, nonce := range snap.Accounts {
		w.put(accountsPrefix.ChildString(addrKey(addr)), nonce)
	}

	// Events are append-only; only the ones after the stored tail are new.
	var written uint64
	if prev != nil {
		written = prev.Events
	}
	if written > uint64(len(snap.Store.Events)) {
		written = 0
	}
	for _, e := range snap.Store.Events[written:] {
		w.put(eventsPrefix.ChildString(strconv.FormatUint(e.Seq, 10)), e)
	}

	w.put(metaKey, meta{
		Version:     schemaVersion,
		Height:      snap.Height,
		Owner:       snap.Store.Owner,
		Address:     snap.Store.Address,
		Policy:      snap.Store.Policy,
		Products:    len(snap.Store.Products),
		Events:      uint64(len(snap.Store.Events)),
		TotalSupply: bigString(snap.Token.TotalSupply),
	})

	if w.err != nil {
		return w.err
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. It returns false when nothing was saved yet.
func (s *Store) Load(ctx context.Context) (*Snapshot, bool, error) {
	m, err := s.loadMeta(ctx)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if m.Version != schemaVersion {
		return nil, false, fmt.Errorf("unsupported state version %d", m.Version)
	}

	snap := &Snapshot{
		Height: m.Height,
		Store: technostore.State{
			Owner:     m.Owner,
			Address:   m.Address,
			Policy:    m.Policy,
			Products:  make([]technostore.ProductInfo, 0, m.Products),
			Purchases: []technostore.PurchaseRecord{},
			Rosters:   make([][]common.Address, m.Products),
			Events:    make([]technostore.Event, 0, m.Events),
		},
		Token: token.State{
			TotalSupply: new(big.Int),
			Balances:    make(map[common.Address]*big.Int),
			Nonces:      make(map[common.Address]*big.Int),
			Allowances:  make(map[common.Address]map[common.Address]*big.Int),
		},
		Accounts: make(map[common.Address]uint64),
	}
	if m.TotalSupply != "" {
		if _, ok := snap.Token.TotalSupply.SetString(m.TotalSupply, 10); !ok {
			return nil, false, fmt.Errorf("bad total supply %q", m.TotalSupply)
		}
	}

	for i := 0; i < m.Products; i++ {
		var rec productRecord
		if err := s.get(ctx, productsPrefix.ChildString(strconv.Itoa(i)), &rec); err != nil {
			return nil, false, fmt.Errorf("product %d: %w", i, err)
		}
		price, ok := new(big.Int).SetString(rec.Price, 10)
		if !ok {
			return nil, false, fmt.Errorf("product %d: bad price %q", i, rec.Price)
		}
		snap.Store.Products = append(snap.Store.Products, technostore.ProductInfo{
			Index:    i,
			Name:     rec.Name,
			Quantity: rec.Quantity,
			Price:    price,
		})

		var roster []common.Address
		err := s.get(ctx, rostersPrefix.ChildString(strconv.Itoa(i)), &roster)
		if err != nil && !errors.Is(err, datastore.ErrNotFound) {
			return nil, false, fmt.Errorf("roster %d: %w", i, err)
		}
		if roster == nil {
			roster = []common.Address{}
		}
		snap.Store.Rosters[i] = roster
	}

	if err := s.each(ctx, purchasesPrefix, func(k datastore.Key, v []byte) error {
		parts := k.Namespaces()
		if len(parts) != 3 {
			return fmt.Errorf("bad purchase key %s", k)
		}
		idx, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("bad purchase key %s: %w", k, err)
		}
		var height uint64
		if err := json.Unmarshal(v, &height); err != nil {
			return err
		}
		snap.Store.Purchases = append(snap.Store.Purchases, technostore.PurchaseRecord{
			Index:  idx,
			Buyer:  common.HexToAddress(parts[2]),
			Height: height,
		})
		return nil
	}); err != nil {
		return nil, false, err
	}
	sort.Slice(snap.Store.Purchases, func(i, j int) bool {
		a, b := snap.Store.Purchases[i], snap.Store.Purchases[j]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.Buyer.Cmp(b.Buyer) < 0
	})

	if err := s.eachAmount(ctx, balancesPrefix, func(parts []string, v *big.Int) {
		snap.Token.Balances[common.HexToAddress(parts[len(parts)-1])] = v
	}); err != nil {
		return nil, false, err
	}
	if err := s.eachAmount(ctx, noncesPrefix, func(parts []string, v *big.Int) {
		snap.Token.Nonces[common.HexToAddress(parts[len(parts)-1])] = v
	}); err != nil {
		return nil, false, err
	}
	if err := s.eachAmount(ctx, allowPrefix, func(parts []string, v *big.Int) {
		owner := common.HexToAddress(parts[len(parts)-2])
		spender := common.HexToAddress(parts[len(parts)-1])
		if snap.Token.Allowances[owner] == nil {
			snap.Token.Allowances[owner] = make(map[common.Address]*big.Int)
		}
		snap.Token.Allowances[owner][spender] = v
	}); err != nil {
		return nil, false, err
	}

	if err := s.each(ctx, accountsPrefix, func(k datastore.Key, v []byte) error {
		var nonce uint64
		if err := json.Unmarshal(v, &nonce); err != nil {
			return err
		}
		snap.Accounts[common.HexToAddress(k.BaseNamespace())] = nonce
		return nil
	}); err != nil {
		return nil, false, err
	}

	for seq := uint64(1); seq <= m.Events; seq++ {
		var e technostore.Event
		if err := s.get(ctx, eventsPrefix.ChildString(strconv.FormatUint(seq, 10)), &e); err != nil {
			return nil, false, fmt.Errorf("event %d: %w", seq, err)
		}
		snap.Store.Events = append(snap.Store.Events, e)
	}

	log.Debugw("loaded state", "height", m.Height, "products", m.Products, "events", m.Events)
	return snap, true, nil
}

type productRecord struct {
	Name     string `json:"name"`
	Quantity uint64 `json:"quantity"`
	Price    string `json:"price"`
}

func (s *Store) loadMeta(ctx context.Context) (*meta, error) {
	var m meta
	if err := s.get(ctx, metaKey, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) get(ctx context.Context, k datastore.Key, out interface{}) error {
	b, err := s.ds.Get(ctx, k)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", k, err)
	}
	return nil
}

func (s *Store) each(ctx context.Context, prefix datastore.Key, fn func(datastore.Key, []byte) error) error {
	res, err := s.ds.Query(ctx, query.Query{Prefix: prefix.String()})
	if err != nil {
		return fmt.Errorf("query %s: %w", prefix, err)
	}
	defer func() { _ = res.Close() }()

	for r := range res.Next() {
		if r.Error != nil {
			return fmt.Errorf("query %s: %w", prefix, r.Error)
		}
		if err := fn(datastore.RawKey(r.Key), r.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) eachAmount(ctx context.Context, prefix datastore.Key, fn func([]string, *big.Int)) error {
	return s.each(ctx, prefix, func(k datastore.Key, v []byte) error {
		var str string
		if err := json.Unmarshal(v, &str); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		amount, ok := new(big.Int).SetString(str, 10)
		if !ok {
			return fmt.Errorf("bad amount %q at %s", str, k)
		}
		fn(k.Namespaces(), amount)
		return nil
	})
}

// writer accumulates batch operations and keeps the first error.
type writer struct {
	ctx   context.Context
	batch datastore.Batch
	err   error
}

func (w *writer) put(k datastore.Key, v interface{}) {
	if w.err != nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		w.err = fmt.Errorf("encode %s: %w", k, err)
		return
	}
	if err := w.batch.Put(w.ctx, k, b); err != nil {
		w.err = fmt.Errorf("put %s: %w", k, err)
	}
}

// prune deletes every key under prefix that is not in keep.
func (w *writer) prune(ds datastore.Read, prefix datastore.Key, keep map[datastore.Key]struct{}) {
	if w.err != nil {
		return
	}
	res, err := ds.Query(w.ctx, query.Query{Prefix: prefix.String(), KeysOnly: true})
	if err != nil {
		w.err = fmt.Errorf("query %s: %w", prefix, err)
		return
	}
	entries, err := res.Rest()
	if err != nil {
		w.err = fmt.Errorf("query %s: %w", prefix, err)
		return
	}
	for _, e := range entries {
		k := datastore.RawKey(e.Key)
		if _, ok := keep[k]; ok {
			continue
		}
		if err := w.batch.Delete(w.ctx, k); err != nil {
			w.err = fmt.Errorf("delete %s: %w", k, err)
			return
		}
	}
}

func addrKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
