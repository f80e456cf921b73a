package statestore

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	technostore "github.com/technostore/technostore/go"
	"github.com/technostore/technostore/go/token"
)

var (
	owner   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	buyer   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	storeID = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

func testSnapshot() Snapshot {
	return Snapshot{
		Height: 12,
		Store: technostore.State{
			Owner:   owner,
			Address: storeID,
			Policy:  technostore.PolicyV1,
			Products: []technostore.ProductInfo{
				{Index: 0, Name: "Keyboard", Quantity: 9, Price: big.NewInt(50)},
				{Index: 1, Name: "Mouse", Quantity: 3, Price: big.NewInt(20)},
			},
			Purchases: []technostore.PurchaseRecord{
				{Index: 0, Buyer: buyer, Height: 11},
			},
			Rosters: [][]common.Address{{buyer}, {}},
			Events: []technostore.Event{
				{Seq: 1, Height: 2, Kind: technostore.EventProductAdded, Product: "Keyboard", Quantity: 10},
				{Seq: 2, Height: 3, Kind: technostore.EventProductAdded, Product: "Mouse", Quantity: 3},
				{Seq: 3, Height: 11, Kind: technostore.EventProductBought, Product: "Keyboard", Buyer: buyer},
			},
		},
		Token: token.State{
			TotalSupply: big.NewInt(11000),
			Balances: map[common.Address]*big.Int{
				owner:   big.NewInt(10000),
				buyer:   big.NewInt(950),
				storeID: big.NewInt(50),
			},
			Nonces: map[common.Address]*big.Int{
				buyer: big.NewInt(1),
			},
			Allowances: map[common.Address]map[common.Address]*big.Int{
				owner: {storeID: big.NewInt(7)},
			},
		},
		Accounts: map[common.Address]uint64{
			owner: 2,
			buyer: 1,
		},
	}
}

func TestLoadEmpty(t *testing.T) {
	s := NewMemory()
	snap, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	want := testSnapshot()

	require.NoError(t, s.Save(ctx, want))

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, *got)
}

func TestSavePrunesRemovedEntries(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	snap := testSnapshot()
	require.NoError(t, s.Save(ctx, snap))

	// The buyer spends everything and the allowance is used up.
	snap.Height = 13
	delete(snap.Token.Balances, buyer)
	snap.Token.Balances[storeID] = big.NewInt(1000)
	snap.Token.Allowances = map[common.Address]map[common.Address]*big.Int{}
	snap.Store.Events = append(snap.Store.Events, technostore.Event{
		Seq: 4, Height: 13, Kind: technostore.EventProductRefunded, Product: "Keyboard", Buyer: buyer,
	})
	require.NoError(t, s.Save(ctx, snap))

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap, *got)
	assert.NotContains(t, got.Token.Balances, buyer)
	assert.Empty(t, got.Token.Allowances)
	assert.Len(t, got.Store.Events, 4)
}

func TestSaveRewritesStateAndAppendsEvents(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	snap := testSnapshot()
	require.NoError(t, s.Save(ctx, snap))

	// Stored events are never rewritten, everything else is.
	snap.Store.Products[1].Quantity = 8
	snap.Store.Events[0].Quantity = 99
	require.NoError(t, s.Save(ctx, snap))

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(8), got.Store.Products[1].Quantity)
	assert.Equal(t, uint64(10), got.Store.Events[0].Quantity)
}

func TestLevelDB(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, testSnapshot()))
	require.NoError(t, s.Close())

	s, err = OpenLevelDB(dir)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testSnapshot(), *got)
}
