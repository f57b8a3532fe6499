// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"context"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/crowdaa-sync/internal/mapstore"
)

func newTestMapStore(t *testing.T) *mapstore.Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mapstore.NewWithDB(db)
}

func TestAcquireLockFree(t *testing.T) {
	store := newTestMapStore(t)
	require.NoError(t, acquireLock(context.Background(), store, "runner", time.Second))
	require.NoError(t, store.ReleaseLock())
}

func TestAcquireLockHeldTimesOut(t *testing.T) {
	store := newTestMapStore(t)
	require.NoError(t, store.AcquireLock("other", lockStaleAfter))

	err := acquireLock(context.Background(), store, "runner", 10*time.Millisecond)
	require.ErrorIs(t, err, ErrLockTimeout)
}

func TestAcquireLockCanceled(t *testing.T) {
	store := newTestMapStore(t)
	require.NoError(t, store.AcquireLock("other", lockStaleAfter))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := acquireLock(ctx, store, "runner", time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}
