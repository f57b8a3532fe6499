// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

// Package syncer implements the bidirectional synchronization engine:
// diff builders that classify badges, categories and articles into
// operation buckets, the execution engine that applies them, and the
// orchestrator that runs a full pass under a lock and a time budget.
package syncer

import (
	"strconv"

	"github.com/rs/zerolog"

	"github.com/common-repository/crowdaa-sync/internal/config"
	"github.com/common-repository/crowdaa-sync/internal/crowdaa"
	"github.com/common-repository/crowdaa-sync/internal/logging"
	"github.com/common-repository/crowdaa-sync/internal/mapstore"
	"github.com/common-repository/crowdaa-sync/internal/metrics"
	"github.com/common-repository/crowdaa-sync/internal/models"
	"github.com/common-repository/crowdaa-sync/internal/permissions"
	"github.com/common-repository/crowdaa-sync/internal/wordpress"
)

// Syncer owns one synchronization pipeline. The sync configuration is
// copied at construction; a running pass never observes config changes.
type Syncer struct {
	wp       *wordpress.Store
	api      *crowdaa.Client
	maps     *mapstore.Store
	perms    permissions.Backend
	cfg      config.SyncConfig
	mediaDir string
	log      zerolog.Logger
}

// New builds a Syncer over the given stores. The sync section of cfg is
// captured by value.
func New(wp *wordpress.Store, api *crowdaa.Client, maps *mapstore.Store, perms permissions.Backend, cfg *config.Config) *Syncer {
	return &Syncer{
		wp:       wp,
		api:      api,
		maps:     maps,
		perms:    perms,
		cfg:      cfg.Sync,
		mediaDir: cfg.WordPress.MediaDir,
		log:      logging.Component("syncer"),
	}
}

// metaVersion is the numeric sync logic version stamped on mappings.
func (s *Syncer) metaVersion() int64 {
	v, err := strconv.ParseInt(s.cfg.MetaVersion, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// applied records one successful entity operation.
func (s *Syncer) applied(c models.Collection, op models.Operation, target models.Target) {
	metrics.EntityOps.WithLabelValues(string(c), string(op), string(target)).Inc()
	s.log.Debug().
		Str("collection", string(c)).
		Str("operation", string(op)).
		Str("target", string(target)).
		Msg("Applied sync operation")
}

// entityFailure records a per-entity failure and passes the error
// through for aggregation.
func (s *Syncer) entityFailure(c models.Collection, target models.Target, err error) error {
	metrics.EntityErrors.WithLabelValues(string(c), string(target)).Inc()
	s.log.Warn().Err(err).
		Str("collection", string(c)).
		Str("target", string(target)).
		Msg("Entity sync failed")
	return err
}
