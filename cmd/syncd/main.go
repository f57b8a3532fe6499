// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

// Command syncd runs the Crowdaa / WordPress synchronization daemon:
// the admin HTTP server, the cron scheduler and the sync engine.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-repository/crowdaa-sync/internal/api"
	"github.com/common-repository/crowdaa-sync/internal/config"
	"github.com/common-repository/crowdaa-sync/internal/crowdaa"
	"github.com/common-repository/crowdaa-sync/internal/logging"
	"github.com/common-repository/crowdaa-sync/internal/mapstore"
	"github.com/common-repository/crowdaa-sync/internal/permissions"
	"github.com/common-repository/crowdaa-sync/internal/supervisor"
	"github.com/common-repository/crowdaa-sync/internal/syncer"
	"github.com/common-repository/crowdaa-sync/internal/wordpress"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("syncd exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	if err := logging.Init(logCfg); err != nil {
		return err
	}

	wp, err := wordpress.Open(cfg.WordPress.DatabasePath)
	if err != nil {
		return err
	}
	defer wp.Close()

	maps, err := mapstore.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer maps.Close()

	client := crowdaa.New(&cfg.Crowdaa)
	perms := permissions.Select(cfg.WordPress.PermissionsPlugin, wp)
	engine := syncer.New(wp, client, maps, perms, cfg)

	tree := supervisor.New()
	tree.Add(api.NewServer(&cfg.Server, api.NewHandler(engine)))
	tree.Add(syncer.NewScheduler(engine))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("syncd starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("syncd stopped")
	return nil
}
