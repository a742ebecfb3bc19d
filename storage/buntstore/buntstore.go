// Package buntstore backs the chainstore storage contract with a single
// embedded github.com/tidwall/buntdb database, one key per logical file,
// driven through Update/View transactions.
package buntstore

import (
	"errors"

	"github.com/tidwall/buntdb"

	"github.com/nullbyte-labs/chainstore/storage"
)

// Store is a storage.Factory backed by one buntdb.DB, used as the backing in
// tests. Every logical path, including any prefix a storage.Router adds, is
// stored as one flat key; there are no directories.
type Store struct {
	db *buntdb.DB
}

// Open opens (creating if necessary) a buntdb database at path. Pass ":memory:"
// for a purely in-memory store.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Factory returns the storage.Factory entry point.
func (s *Store) Factory() storage.Factory {
	return s.open
}

func (s *Store) open(name string) (storage.Handle, error) {
	return &handle{store: s, key: name}, nil
}

type handle struct {
	store *Store
	key   string
}

func (h *handle) ReadAt(offset int64, length int64) ([]byte, error) {
	var value string
	err := h.store.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(h.key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	blob := []byte(value)
	if offset >= int64(len(blob)) {
		return []byte{}, nil
	}
	end := offset + length
	if end > int64(len(blob)) {
		end = int64(len(blob))
	}
	return blob[offset:end], nil
}

func (h *handle) WriteAt(offset int64, data []byte) error {
	return h.store.db.Update(func(tx *buntdb.Tx) error {
		var blob []byte
		if v, err := tx.Get(h.key); err == nil {
			blob = []byte(v)
		} else if !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}

		end := offset + int64(len(data))
		if end > int64(len(blob)) {
			grown := make([]byte, end)
			copy(grown, blob)
			blob = grown
		}
		copy(blob[offset:end], data)

		_, _, err := tx.Set(h.key, string(blob), nil)
		return err
	})
}

func (h *handle) Stat() (storage.Info, error) {
	var size int64
	err := h.store.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(h.key)
		if err != nil {
			return err
		}
		size = int64(len(v))
		return nil
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return storage.Info{}, storage.ErrNotFound
		}
		return storage.Info{}, err
	}
	return storage.Info{Size: size}, nil
}

func (h *handle) Close() error {
	return nil
}
