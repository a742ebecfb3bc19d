// Package chainstore is a factory and lifecycle manager for a collection of
// append-only, cryptographically-addressed logs ("chains"): deterministic
// key derivation from one master secret, on-demand chain instantiation over
// content-addressed storage, a reference-counted cache deduplicating chain
// handles across callers, a replication multiplexer fanning chains onto
// shared peer streams, and a namespacing mechanism giving disjoint default
// chains to independent consumers of one physical store.
package chainstore

import (
	"github.com/nullbyte-labs/chainstore/storage"
)

// New opens a Store. storageArg is either a storage.Factory or a string
// directory path (wrapped into a file-backed factory); anything else is
// ErrBadStorage. Options.NewChain is required.
func New(storageArg interface{}, opts Options) (*Store, error) {
	router, err := buildRouter(storageArg)
	if err != nil {
		return nil, err
	}
	if opts.NewChain == nil {
		return nil, ErrNoChainConstructor
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	eng := newEngine(router, opts)
	return &Store{eng: eng, name: "default", owned: make(map[string]ownedChainRef)}, nil
}

func buildRouter(storageArg interface{}) (*storage.Router, error) {
	switch v := storageArg.(type) {
	case storage.Factory:
		return storage.NewRouter(v), nil
	case func(string) (storage.Handle, error):
		return storage.NewRouter(storage.Factory(v)), nil
	case string:
		return storage.NewDirRouter(v), nil
	default:
		return nil, ErrBadStorage
	}
}
