// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/common-repository/crowdaa-sync/internal/mapstore"
	"github.com/common-repository/crowdaa-sync/internal/metrics"
	"github.com/common-repository/crowdaa-sync/internal/wordpress"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerCron   Trigger = "cron"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeSkipped = "skipped"
)

// lockWaitMax bounds how long a run waits for a concurrent run to
// finish before giving up.
const lockWaitMax = 30 * time.Second

// ErrNotConfigured is returned when a run is requested before the
// plugin-side prerequisites are in place.
var ErrNotConfigured = errors.New("sync prerequisites not met")

// Result is the report of one run.
type Result struct {
	Trigger  Trigger       `json:"trigger"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Outcome  string        `json:"outcome"`

	Badges     *Queue `json:"badges,omitempty"`
	Categories *Queue `json:"categories,omitempty"`
	Articles   *Queue `json:"articles,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// Run executes one full synchronization pass: legacy-mapping migration,
// diff and execution for badges, categories and articles, then cursor
// advancement. At most one run holds the lock at a time. Entity
// failures are collected and reported; a failed diff aborts the run.
func (s *Syncer) Run(ctx context.Context, trigger Trigger) (*Result, error) {
	res := &Result{Trigger: trigger, Started: time.Now().UTC()}

	if err := s.preflight(ctx); err != nil {
		s.finish(res, OutcomeSkipped)
		return res, err
	}

	holder, _ := os.Hostname()
	if holder == "" {
		holder = string(trigger)
	}
	if err := acquireLock(ctx, s.maps, holder, lockWaitMax); err != nil {
		s.finish(res, OutcomeSkipped)
		return res, err
	}
	defer func() {
		if err := s.maps.ReleaseLock(); err != nil {
			s.log.Error().Err(err).Msg("Failed to release sync lock")
		}
	}()

	b := newBudget(s.cfg.MaxDuration)
	s.log.Info().Str("trigger", string(trigger)).Msg("Sync run started")

	if err := s.MigrateLegacyMappings(ctx); err != nil {
		s.finish(res, OutcomeError)
		return res, err
	}
	if err := s.ensureLogicVersion(); err != nil {
		s.finish(res, OutcomeError)
		return res, err
	}

	badges, err := s.DiffBadges(ctx)
	if err != nil {
		s.finish(res, OutcomeError)
		return res, err
	}
	res.Badges = badges.queue

	categories, err := s.DiffCategories(ctx)
	if err != nil {
		s.finish(res, OutcomeError)
		return res, err
	}
	res.Categories = categories.queue

	articles, err := s.DiffArticles(ctx, categories.filter)
	if err != nil {
		s.finish(res, OutcomeError)
		return res, err
	}
	res.Articles = articles.queue

	var pushErrs, pullErrs []error
	if s.cfg.PushEnabled {
		pushErrs = append(pushErrs, s.PushBadges(ctx, badges, b)...)
		pushErrs = append(pushErrs, s.PushCategories(ctx, categories, b)...)
		pushErrs = append(pushErrs, s.PushArticles(ctx, articles, b)...)
	}
	if s.cfg.PullEnabled {
		pullErrs = append(pullErrs, s.PullBadges(ctx, badges, b)...)
		pullErrs = append(pullErrs, s.PullCategories(ctx, categories, b)...)
		pullErrs = append(pullErrs, s.PullArticles(ctx, articles, b)...)
	}

	// Cursors only advance when their direction completed cleanly, so
	// entities behind a failed operation are rescanned next run.
	if s.cfg.PushEnabled && len(pushErrs) == 0 {
		if err := s.advanceWatermark(mapstore.DirectionPush, articles.maxLocalModified); err != nil {
			pushErrs = append(pushErrs, err)
		}
	}
	if s.cfg.PullEnabled && len(pullErrs) == 0 {
		target := articles.maxRemoteUpdated
		if !articles.remoteHoldback.IsZero() {
			if hb := articles.remoteHoldback.Add(-time.Nanosecond); hb.Before(target) {
				target = hb
			}
		}
		if err := s.advanceWatermark(mapstore.DirectionPull, target); err != nil {
			pullErrs = append(pullErrs, err)
		}
	}

	all := append(pushErrs, pullErrs...)
	outcome := OutcomeSuccess
	for _, e := range all {
		res.Errors = append(res.Errors, e.Error())
		if outcome != OutcomeTimeout {
			outcome = OutcomeError
		}
		if IsTimeout(e) {
			outcome = OutcomeTimeout
		}
	}

	s.finish(res, outcome)
	s.log.Info().
		Str("outcome", outcome).
		Dur("duration", res.Duration).
		Int("errors", len(res.Errors)).
		Msg("Sync run finished")
	return res, nil
}

// Preview computes the operation queues without executing anything.
// It takes the run lock because the category diff prunes stale
// mappings while classifying.
func (s *Syncer) Preview(ctx context.Context) (*Result, error) {
	res := &Result{Trigger: TriggerManual, Started: time.Now().UTC()}

	holder, _ := os.Hostname()
	if err := acquireLock(ctx, s.maps, holder, lockWaitMax); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.maps.ReleaseLock(); err != nil {
			s.log.Error().Err(err).Msg("Failed to release sync lock")
		}
	}()

	badges, err := s.DiffBadges(ctx)
	if err != nil {
		return nil, err
	}
	res.Badges = badges.queue

	categories, err := s.DiffCategories(ctx)
	if err != nil {
		return nil, err
	}
	res.Categories = categories.queue

	articles, err := s.DiffArticles(ctx, categories.filter)
	if err != nil {
		return nil, err
	}
	res.Articles = articles.queue

	res.Outcome = OutcomeSuccess
	res.Duration = time.Since(res.Started)
	return res, nil
}

// preflight verifies the run prerequisites: API credentials and the
// default feed image every pushed article without media falls back to.
func (s *Syncer) preflight(ctx context.Context) error {
	if !s.api.HasAuthToken() {
		return fmt.Errorf("%w: missing API auth token", ErrNotConfigured)
	}
	defaultImage, err := s.wp.Option(ctx, wordpress.OptionDefaultImageID)
	if err != nil {
		return fatalErr("read default image option: %w", err)
	}
	if defaultImage == "" {
		return fmt.Errorf("%w: default image not configured", ErrNotConfigured)
	}
	return nil
}

// ensureLogicVersion catches the stored version counter up to the
// deployed one. Each bump clears both article cursors, so a logic
// upgrade rescans every article.
func (s *Syncer) ensureLogicVersion() error {
	stored, err := s.maps.Version()
	if err != nil {
		return fatalErr("read logic version: %w", err)
	}
	for deployed := s.metaVersion(); stored < deployed; {
		if stored, err = s.maps.BumpVersion(); err != nil {
			return fatalErr("bump logic version: %w", err)
		}
	}
	return nil
}

// advanceWatermark moves a direction cursor forward to ts, never
// backward.
func (s *Syncer) advanceWatermark(d mapstore.Direction, ts time.Time) error {
	if ts.IsZero() {
		return nil
	}
	current, err := s.maps.Watermark(d)
	if err != nil {
		return fatalErr("read %s watermark: %w", d, err)
	}
	if !ts.After(current) {
		return nil
	}
	if err := s.maps.SetWatermark(d, ts); err != nil {
		return fatalErr("advance %s watermark: %w", d, err)
	}
	return nil
}

func (s *Syncer) finish(res *Result, outcome string) {
	res.Outcome = outcome
	res.Duration = time.Since(res.Started)
	metrics.SyncRuns.WithLabelValues(outcome).Inc()
	metrics.SyncRunDuration.Observe(res.Duration.Seconds())
}
