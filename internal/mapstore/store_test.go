// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package mapstore

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/crowdaa-sync/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewWithDB(db)
}

func TestPutAndLookup(t *testing.T) {
	s := newTestStore(t)

	e := &Entry{
		Collection: models.CollectionCategories,
		LocalID:    42,
		RemoteID:   "abc123",
		Version:    2,
		SyncTime:   time.Now().UTC(),
		LocalHash:  "h-local",
		RemoteHash: "h-remote",
	}
	require.NoError(t, s.Put(e))
	require.NotEmpty(t, e.ID, "Put should assign an internal id")

	byLocal, err := s.GetByLocal(models.CollectionCategories, 42)
	require.NoError(t, err)
	assert.Equal(t, e.ID, byLocal.ID)
	assert.Equal(t, "abc123", byLocal.RemoteID)
	assert.Equal(t, "h-local", byLocal.LocalHash)

	byRemote, err := s.GetByRemote(models.CollectionCategories, "abc123")
	require.NoError(t, err)
	assert.Equal(t, e.ID, byRemote.ID)
	assert.EqualValues(t, 42, byRemote.LocalID)
}

func TestLookupMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetByLocal(models.CollectionBadges, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetByRemote(models.CollectionBadges, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUniquenessPerSide(t *testing.T) {
	s := newTestStore(t)

	first := &Entry{Collection: models.CollectionArticles, LocalID: 1, RemoteID: "r1"}
	require.NoError(t, s.Put(first))

	tests := []struct {
		name  string
		entry *Entry
	}{
		{
			name:  "duplicate local id",
			entry: &Entry{Collection: models.CollectionArticles, LocalID: 1, RemoteID: "r2"},
		},
		{
			name:  "duplicate remote id",
			entry: &Entry{Collection: models.CollectionArticles, LocalID: 2, RemoteID: "r1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Put(tt.entry)
			assert.ErrorIs(t, err, ErrDuplicate)
		})
	}

	// Same ids in a different collection do not collide.
	other := &Entry{Collection: models.CollectionCategories, LocalID: 1, RemoteID: "r1"}
	assert.NoError(t, s.Put(other))
}

func TestRelinkUpdatesIndexes(t *testing.T) {
	s := newTestStore(t)

	e := &Entry{Collection: models.CollectionCategories, LocalID: 5, RemoteID: "old"}
	require.NoError(t, s.Put(e))

	e.RemoteID = "new"
	require.NoError(t, s.Put(e))

	_, err := s.GetByRemote(models.CollectionCategories, "old")
	assert.ErrorIs(t, err, ErrNotFound, "stale remote index should be gone")

	got, err := s.GetByRemote(models.CollectionCategories, "new")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	e := &Entry{Collection: models.CollectionBadges, LocalID: 9, RemoteID: "b9"}
	require.NoError(t, s.Put(e))
	require.NoError(t, s.Delete(models.CollectionBadges, e.ID))

	_, err := s.GetByLocal(models.CollectionBadges, 9)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByRemote(models.CollectionBadges, "b9")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, s.Delete(models.CollectionBadges, e.ID))
}

func TestList(t *testing.T) {
	s := newTestStore(t)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, s.Put(&Entry{
			Collection: models.CollectionArticles,
			LocalID:    i,
			RemoteID:   "a" + string(rune('0'+i)),
		}))
	}
	require.NoError(t, s.Put(&Entry{Collection: models.CollectionBadges, LocalID: 1, RemoteID: "b1"}))

	entries, err := s.List(models.CollectionArticles)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "List should be scoped to one collection")
}

func TestWatermarks(t *testing.T) {
	s := newTestStore(t)

	ts, err := s.Watermark(DirectionPush)
	require.NoError(t, err)
	assert.True(t, ts.IsZero(), "unset watermark should be the zero time")

	want := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	require.NoError(t, s.SetWatermark(DirectionPush, want))

	got, err := s.Watermark(DirectionPush)
	require.NoError(t, err)
	assert.True(t, got.Equal(want))

	// The other direction is untouched.
	other, err := s.Watermark(DirectionPull)
	require.NoError(t, err)
	assert.True(t, other.IsZero())
}

func TestBumpVersionResetsWatermarks(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetWatermark(DirectionPush, time.Now()))
	require.NoError(t, s.SetWatermark(DirectionPull, time.Now()))

	v, err := s.BumpVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	v, err = s.BumpVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)

	for _, d := range []Direction{DirectionPush, DirectionPull} {
		ts, err := s.Watermark(d)
		require.NoError(t, err)
		assert.True(t, ts.IsZero(), "bump should clear watermark %s", d)
	}
}

func TestMigrationMarker(t *testing.T) {
	s := newTestStore(t)

	done, err := s.Migrated(models.CollectionCategories)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.SetMigrated(models.CollectionCategories))

	done, err = s.Migrated(models.CollectionCategories)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = s.Migrated(models.CollectionBadges)
	require.NoError(t, err)
	assert.False(t, done, "marker is per collection")
}

func TestLock(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AcquireLock("run-1", time.Minute))
	assert.ErrorIs(t, s.AcquireLock("run-2", time.Minute), ErrLockHeld)

	require.NoError(t, s.ReleaseLock())
	assert.NoError(t, s.AcquireLock("run-2", time.Minute))
}

func TestLockStaleTakeover(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AcquireLock("dead-run", time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	assert.NoError(t, s.AcquireLock("fresh-run", time.Minute),
		"abandoned lock should be taken over")
}
