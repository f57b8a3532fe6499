// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/crowdaa-sync/internal/config"
)

func TestSchedulerDisabledIdlesUntilShutdown(t *testing.T) {
	f := newFixture(t, nil)
	sc := NewScheduler(f.syncer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

func TestSchedulerTriggersRuns(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Sync.CronEnabled = true
		cfg.Sync.CronInterval = 10 * time.Millisecond
	})
	ctx := context.Background()
	f.seedDefaultImage(t)
	_, err := f.wp.CreatePMProLevel(ctx, "Gold")
	require.NoError(t, err)

	sc := NewScheduler(f.syncer)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sc.Serve(runCtx) }()

	require.Eventually(t, func() bool {
		return f.remote.BadgeCount() == 1
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
