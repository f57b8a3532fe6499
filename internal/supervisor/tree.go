// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

// Package supervisor assembles the suture tree that keeps the HTTP
// server and the cron scheduler running.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/common-repository/crowdaa-sync/internal/logging"
)

// Tree is the two-layer supervision tree: the scheduler and the HTTP
// server restart independently, so a panicking sync run never takes the
// admin surface down with it.
type Tree struct {
	root *suture.Supervisor
}

// New builds the tree. Failure parameters follow suture's defaults.
func New() *Tree {
	handler := &sutureslog.Handler{Logger: logging.Slog()}
	root := suture.New("crowdaa-sync", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	return &Tree{root: root}
}

// Add registers a service with the tree.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	return t.root.Add(svc)
}

// Serve runs the tree until the context is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}
