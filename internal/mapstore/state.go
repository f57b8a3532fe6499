// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package mapstore

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/common-repository/crowdaa-sync/internal/models"
)

// Direction names one side-to-side flow of the sync engine.
type Direction string

const (
	DirectionPush Direction = "local_to_remote"
	DirectionPull Direction = "remote_to_local"
)

const (
	stateWatermarkPrefix = "state:watermark:"
	stateVersionKey      = "state:version"
	stateMigratedPrefix  = "state:migrated:"
	lockKey              = "state:lock"
)

// ErrLockHeld is returned by AcquireLock when another run owns the lock.
var ErrLockHeld = errors.New("sync lock held")

func watermarkKey(d Direction) []byte {
	return []byte(stateWatermarkPrefix + string(d))
}

// Watermark returns the persisted cursor for a direction. A direction
// that has never completed a run yields the zero time.
func (s *Store) Watermark(d Direction) (time.Time, error) {
	var ts time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(watermarkKey(d))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get watermark: %w", err)
		}
		return item.Value(func(val []byte) error {
			parsed, err := time.Parse(time.RFC3339Nano, string(val))
			if err != nil {
				return fmt.Errorf("parse watermark: %w", err)
			}
			ts = parsed
			return nil
		})
	})
	return ts, err
}

// SetWatermark persists the cursor for a direction.
func (s *Store) SetWatermark(d Direction, ts time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(watermarkKey(d), []byte(ts.UTC().Format(time.RFC3339Nano)))
	})
}

// Version returns the stored sync logic version counter, zero when unset.
func (s *Store) Version() (int64, error) {
	var v int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stateVersionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get version: %w", err)
		}
		return item.Value(func(val []byte) error {
			parsed, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return fmt.Errorf("parse version: %w", err)
			}
			v = parsed
			return nil
		})
	})
	return v, err
}

// BumpVersion increments the sync logic version and clears both article
// watermarks so the next run rescans everything under the new logic.
func (s *Store) BumpVersion() (int64, error) {
	current, err := s.Version()
	if err != nil {
		return 0, err
	}
	next := current + 1
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(stateVersionKey), []byte(strconv.FormatInt(next, 10))); err != nil {
			return fmt.Errorf("set version: %w", err)
		}
		for _, d := range []Direction{DirectionPush, DirectionPull} {
			if err := txn.Delete(watermarkKey(d)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("reset watermark: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Migrated reports whether the one-time legacy mapping migration has run
// for a collection.
func (s *Store) Migrated(c models.Collection) (bool, error) {
	var done bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(stateMigratedPrefix + string(c)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get migration marker: %w", err)
		}
		done = true
		return nil
	})
	return done, err
}

// SetMigrated records that the legacy mapping migration completed for a
// collection.
func (s *Store) SetMigrated(c models.Collection) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stateMigratedPrefix+string(c)), []byte("1"))
	})
}

// lockRecord is the stored state of the run lock.
type lockRecord struct {
	Holder   string    `json:"holder"`
	Acquired time.Time `json:"acquired"`
}

// AcquireLock claims the single run lock. A lock older than stale is
// treated as abandoned and taken over. Returns ErrLockHeld when another
// live holder owns it.
func (s *Store) AcquireLock(holder string, stale time.Duration) error {
	now := time.Now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lockKey))
		if err == nil {
			var held bool
			verr := item.Value(func(val []byte) error {
				var rec lockRecord
				if perr := json.Unmarshal(val, &rec); perr == nil && now.Sub(rec.Acquired) < stale {
					held = true
				}
				return nil
			})
			if verr != nil {
				return verr
			}
			if held {
				return ErrLockHeld
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get lock: %w", err)
		}
		data, err := json.Marshal(lockRecord{Holder: holder, Acquired: now})
		if err != nil {
			return fmt.Errorf("marshal lock: %w", err)
		}
		return txn.Set([]byte(lockKey), data)
	})
}

// ReleaseLock drops the run lock. Releasing an unheld lock is a no-op.
func (s *Store) ReleaseLock() error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(lockKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
