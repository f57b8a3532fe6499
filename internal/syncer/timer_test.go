// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := newBudget(time.Minute)
	b.deadline = now.Add(time.Minute)
	b.now = func() time.Time { return now }

	require.NoError(t, b.check())

	now = now.Add(59 * time.Second)
	require.NoError(t, b.check())

	now = now.Add(2 * time.Second)
	err := b.check()
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestBudgetZeroNeverExpires(t *testing.T) {
	b := newBudget(0)
	b.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	assert.NoError(t, b.check())
}
