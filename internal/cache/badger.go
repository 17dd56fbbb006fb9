// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore is an embedded Store for deployments without Redis. Entries
// carry a badger TTL so expiry stays passive.
type BadgerStore struct {
	db    *badger.DB
	stats counters
}

// OpenBadgerStore opens (or creates) a badger database at path. An empty path
// opens an in-memory database.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: badger %q: %v", ErrUnavailable, path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		s.stats.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		s.stats.errors.Add(1)
		return nil, false, fmt.Errorf("%w: get: %v", ErrUnavailable, err)
	}
	s.stats.hits.Add(1)
	return out, true, nil
}

func (s *BadgerStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		s.stats.errors.Add(1)
		return fmt.Errorf("%w: set: %v", ErrUnavailable, err)
	}
	s.stats.sets.Add(1)
	return nil
}

func (s *BadgerStore) Stats() Stats {
	st := s.stats.snapshot()
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			st.CurrentSize++
		}
		return nil
	})
	return st
}

func (s *BadgerStore) Close() error { return s.db.Close() }

// HealthCheck verifies the database still accepts reads.
func (s *BadgerStore) HealthCheck(context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("%w: badger closed", ErrUnavailable)
	}
	return nil
}
