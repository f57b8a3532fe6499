// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

// Package mapstore persists the identity map linking local WordPress
// entities to their remote Crowdaa counterparts, plus the run state the
// sync engine needs across restarts: article watermarks, the internal
// sync version counter and the run lock.
//
// Storage is BadgerDB. Each mapping is kept under a primary key by
// internal id with two index keys by local and remote id, so lookups
// from either side are prefix reads, and the unique-per-side invariant
// is enforced at write time.
package mapstore

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/common-repository/crowdaa-sync/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	mapKeyPrefix       = "map:"
	mapLocalKeyPrefix  = "map_local:"
	mapRemoteKeyPrefix = "map_remote:"
)

var (
	// ErrNotFound is returned when no mapping exists for the given key.
	ErrNotFound = errors.New("mapping not found")

	// ErrDuplicate is returned when a write would link a local or remote
	// id that is already linked to a different counterpart.
	ErrDuplicate = errors.New("id already mapped")
)

// Entry is one identity-map record. LocalHash and RemoteHash are the
// content hashes captured when the two sides were last reconciled.
type Entry struct {
	ID         string            `json:"id"`
	Collection models.Collection `json:"collection"`
	LocalID    int64             `json:"wp_id"`
	RemoteID   string            `json:"api_id"`
	Version    int64             `json:"sync_version"`
	SyncTime   time.Time         `json:"sync_time"`
	LocalHash  string            `json:"wp_hash"`
	RemoteHash string            `json:"api_hash"`
}

// Store is the BadgerDB-backed identity map and run state store.
type Store struct {
	db *badger.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open map store: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing BadgerDB handle. Used by tests with an
// in-memory database.
func NewWithDB(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func entryKey(c models.Collection, id string) []byte {
	return []byte(mapKeyPrefix + string(c) + ":" + id)
}

func localKey(c models.Collection, localID int64) []byte {
	return []byte(mapLocalKeyPrefix + string(c) + ":" + strconv.FormatInt(localID, 10))
}

func remoteKey(c models.Collection, remoteID string) []byte {
	return []byte(mapRemoteKeyPrefix + string(c) + ":" + remoteID)
}

// Put inserts or updates a mapping. A zero entry ID gets a fresh UUID.
// Linking a local or remote id that already belongs to a different
// entry fails with ErrDuplicate; re-writing the same entry is fine.
func (s *Store) Put(e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := checkIndexFree(txn, localKey(e.Collection, e.LocalID), e.ID); err != nil {
			return err
		}
		if err := checkIndexFree(txn, remoteKey(e.Collection, e.RemoteID), e.ID); err != nil {
			return err
		}

		// Drop stale index keys when the entry is re-linked.
		if prev, err := getEntryTxn(txn, e.Collection, e.ID); err == nil {
			if prev.LocalID != e.LocalID {
				if err := txn.Delete(localKey(e.Collection, prev.LocalID)); err != nil {
					return fmt.Errorf("delete stale local index: %w", err)
				}
			}
			if prev.RemoteID != e.RemoteID {
				if err := txn.Delete(remoteKey(e.Collection, prev.RemoteID)); err != nil {
					return fmt.Errorf("delete stale remote index: %w", err)
				}
			}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		if err := txn.Set(entryKey(e.Collection, e.ID), data); err != nil {
			return fmt.Errorf("set mapping: %w", err)
		}
		if err := txn.Set(localKey(e.Collection, e.LocalID), []byte(e.ID)); err != nil {
			return fmt.Errorf("set local index: %w", err)
		}
		if err := txn.Set(remoteKey(e.Collection, e.RemoteID), []byte(e.ID)); err != nil {
			return fmt.Errorf("set remote index: %w", err)
		}
		return nil
	})
}

// checkIndexFree fails with ErrDuplicate when the index key points at a
// different entry than id.
func checkIndexFree(txn *badger.Txn, key []byte, id string) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	return item.Value(func(val []byte) error {
		if string(val) != id {
			return ErrDuplicate
		}
		return nil
	})
}

func getEntryTxn(txn *badger.Txn, c models.Collection, id string) (*Entry, error) {
	item, err := txn.Get(entryKey(c, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping: %w", err)
	}
	var e Entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal mapping: %w", err)
	}
	return &e, nil
}

// Get retrieves a mapping by internal id.
func (s *Store) Get(c models.Collection, id string) (*Entry, error) {
	var e *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		e, err = getEntryTxn(txn, c, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByLocal retrieves the mapping linked to a local id.
func (s *Store) GetByLocal(c models.Collection, localID int64) (*Entry, error) {
	return s.getByIndex(c, localKey(c, localID))
}

// GetByRemote retrieves the mapping linked to a remote id.
func (s *Store) GetByRemote(c models.Collection, remoteID string) (*Entry, error) {
	return s.getByIndex(c, remoteKey(c, remoteID))
}

func (s *Store) getByIndex(c models.Collection, key []byte) (*Entry, error) {
	var e *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get index: %w", err)
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		e, err = getEntryTxn(txn, c, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns all mappings of a collection.
func (s *Store) List(c models.Collection) ([]*Entry, error) {
	var entries []*Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(mapKeyPrefix + string(c) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("unmarshal mapping: %w", err)
			}
			entries = append(entries, &e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	return entries, nil
}

// Delete removes a mapping and its index keys. Deleting a missing
// mapping is a no-op.
func (s *Store) Delete(c models.Collection, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		e, err := getEntryTxn(txn, c, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(entryKey(c, id)); err != nil {
			return fmt.Errorf("delete mapping: %w", err)
		}
		if err := txn.Delete(localKey(c, e.LocalID)); err != nil {
			return fmt.Errorf("delete local index: %w", err)
		}
		if err := txn.Delete(remoteKey(c, e.RemoteID)); err != nil {
			return fmt.Errorf("delete remote index: %w", err)
		}
		return nil
	})
}
