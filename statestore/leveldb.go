package statestore

import (
	"fmt"

	"github.com/ipfs/go-datastore"
	dsync "github.com/ipfs/go-datastore/sync"
	levelds "github.com/ipfs/go-ds-leveldb"
	ldbopts "github.com/syndtr/goleveldb/leveldb/opt"
)

// OpenLevelDB opens (or creates) a leveldb-backed store at path.
func OpenLevelDB(path string) (*Store, error) {
	ds, err := levelds.NewDatastore(path, &levelds.Options{
		Compression: ldbopts.NoCompression,
		NoSync:      false,
		Strict:      ldbopts.StrictAll,
		ReadOnly:    false,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	log.Infow("opened state database", "path", path)
	return New(ds), nil
}

// NewMemory returns a store backed by a thread-safe in-memory map.
func NewMemory() *Store {
	return New(dsync.MutexWrap(datastore.NewMapDatastore()))
}
