// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/common-repository/crowdaa-sync/internal/logging"
)

// Scheduler triggers periodic sync runs. It implements suture.Service
// so the supervisor restarts it if a run panics.
type Scheduler struct {
	syncer   *Syncer
	enabled  bool
	interval time.Duration
	log      zerolog.Logger
}

// NewScheduler builds a scheduler over the syncer's cron settings.
func NewScheduler(s *Syncer) *Scheduler {
	return &Scheduler{
		syncer:   s,
		enabled:  s.cfg.CronEnabled,
		interval: s.cfg.CronInterval,
		log:      logging.Component("scheduler"),
	}
}

// Serve implements suture.Service. With cron disabled it idles until
// shutdown so the supervision tree keeps a uniform shape.
func (sc *Scheduler) Serve(ctx context.Context) error {
	if !sc.enabled {
		sc.log.Info().Msg("Cron trigger disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	sc.log.Info().Dur("interval", sc.interval).Msg("Cron trigger started")
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res, err := sc.syncer.Run(ctx, TriggerCron)
			switch {
			case errors.Is(err, ErrNotConfigured):
				sc.log.Debug().Err(err).Msg("Skipping cron run")
			case errors.Is(err, ErrLockTimeout):
				sc.log.Warn().Msg("Previous run still holds the lock, skipping")
			case err != nil:
				sc.log.Error().Err(err).Msg("Cron run failed")
			default:
				sc.log.Info().
					Str("outcome", res.Outcome).
					Int("operations", res.Badges.Total()+res.Categories.Total()+res.Articles.Total()).
					Msg("Cron run completed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (sc *Scheduler) String() string { return "sync-scheduler" }
