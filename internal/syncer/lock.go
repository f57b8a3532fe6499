// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/common-repository/crowdaa-sync/internal/mapstore"
)

// lockPollInterval is how often a waiting run re-tries the lock.
const lockPollInterval = time.Second

// lockStaleAfter is the age past which a held lock is treated as
// abandoned by a crashed run.
const lockStaleAfter = 30 * time.Minute

// ErrLockTimeout is returned when the lock stays held for the whole
// bounded wait.
var ErrLockTimeout = errors.New("timed out waiting for sync lock")

// acquireLock claims the run lock, polling once per second until
// maxWait elapses or the context is canceled.
func acquireLock(ctx context.Context, store *mapstore.Store, holder string, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		err := store.AcquireLock(holder, lockStaleAfter)
		if err == nil {
			return nil
		}
		if !errors.Is(err, mapstore.ErrLockHeld) {
			return err
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		select {
		case <-time.After(lockPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
