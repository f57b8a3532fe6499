// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/common-repository/crowdaa-sync/internal/crowdaa"
	"github.com/common-repository/crowdaa-sync/internal/mapstore"
	"github.com/common-repository/crowdaa-sync/internal/metrics"
	"github.com/common-repository/crowdaa-sync/internal/models"
	"github.com/common-repository/crowdaa-sync/internal/wordpress"
)

// articleDiff carries the classified article queue, the snapshots it
// was computed from and the watermark candidates observed while
// scanning. Watermarks are only persisted after the run succeeds.
type articleDiff struct {
	queue  *Queue
	filter *Filter
	local  map[int64]wordpress.Post
	remote map[string]crowdaa.Article

	maxLocalModified time.Time
	maxRemoteUpdated time.Time

	// remoteHoldback is the earliest update time of a remote article that
	// was skipped because none of its categories are mapped yet. The pull
	// cursor must not advance past it, so the article is rescanned once
	// its categories have been pulled.
	remoteHoldback time.Time

	// assigned tracks which bucket a mapping landed in, enforcing one
	// bucket per entity and enabling the conflict rule to re-home an op.
	assigned map[string]Bucket
}

// DiffArticles classifies articles on both sides. The local scan walks
// modified posts past the push watermark in batches; the remote scan
// pages through articles past the pull watermark. Both-sides changes
// resolve by the strictly newer timestamp.
func (s *Syncer) DiffArticles(ctx context.Context, filter *Filter) (*articleDiff, error) {
	queue := &Queue{
		Collection:   models.CollectionArticles,
		PushDisabled: !s.cfg.PushEnabled,
		PullDisabled: !s.cfg.PullEnabled,
	}
	d := &articleDiff{
		queue:    queue,
		filter:   filter,
		local:    make(map[int64]wordpress.Post),
		remote:   make(map[string]crowdaa.Article),
		assigned: make(map[string]Bucket),
	}

	if err := s.sweepArticleMappings(ctx, d); err != nil {
		return nil, err
	}
	if s.cfg.PushEnabled {
		if err := s.scanLocalArticles(ctx, d); err != nil {
			return nil, err
		}
	}
	if s.cfg.PullEnabled {
		if err := s.scanRemoteArticles(ctx, d); err != nil {
			return nil, err
		}
	}

	queue.record()
	return d, nil
}

// sweepArticleMappings detects deletions: a mapping whose local post is
// gone queues a remote delete, one whose remote article is gone queues
// a local delete. Remote articles fetched here are cached for the scans.
func (s *Syncer) sweepArticleMappings(ctx context.Context, d *articleDiff) error {
	entries, err := s.maps.List(models.CollectionArticles)
	if err != nil {
		return fatalErr("list article mappings: %w", err)
	}
	for _, entry := range entries {
		post, err := s.wp.Article(ctx, entry.LocalID)
		if errors.Is(err, wordpress.ErrNotFound) {
			if s.cfg.PushEnabled {
				d.assign(BucketRemoveAPI, Op{Key: entry.ID, LocalID: entry.LocalID, RemoteID: entry.RemoteID})
			}
			continue
		}
		if err != nil {
			return fatalErr("read article %d: %w", entry.LocalID, err)
		}
		d.local[post.ID] = *post

		// The remote snapshot feeds both directions: the pull scan diffs
		// against it and the push scan needs it before queueing an update,
		// so it is fetched whenever either direction runs.
		if !s.cfg.PushEnabled && !s.cfg.PullEnabled {
			continue
		}
		remote, err := s.api.GetArticle(ctx, entry.RemoteID)
		if crowdaa.IsNotFound(err) {
			if s.cfg.PullEnabled {
				d.assign(BucketRemoveWP, Op{Key: entry.ID, LocalID: entry.LocalID, RemoteID: entry.RemoteID, Name: post.Title})
			}
			continue
		}
		if err != nil {
			return fatalErr("fetch article %s: %w", entry.RemoteID, err)
		}
		d.remote[remote.ID] = *remote
	}
	return nil
}

// scanLocalArticles walks posts modified past the push watermark plus
// posts explicitly flagged for sync, and classifies each.
func (s *Syncer) scanLocalArticles(ctx context.Context, d *articleDiff) error {
	watermark, err := s.maps.Watermark(mapstore.DirectionPush)
	if err != nil {
		return fatalErr("read push watermark: %w", err)
	}

	batch := s.cfg.ArticleBatchSize
	if batch <= 0 {
		batch = 100
	}

	// Pages advance on a (modified, id) cursor. Posts stamped with the
	// watermark second itself are re-read and skipped as clean, which is
	// cheaper than ever missing a same-second edit.
	candidates := make(map[int64]wordpress.Post)
	since, sinceID := watermark, int64(0)
	for {
		posts, err := s.wp.ArticlesModifiedSince(ctx, since, sinceID, batch)
		if err != nil {
			return fatalErr("scan modified articles: %w", err)
		}
		for _, p := range posts {
			candidates[p.ID] = p
			if p.Modified.After(d.maxLocalModified) {
				d.maxLocalModified = p.Modified
			}
		}
		if len(posts) < batch {
			break
		}
		last := posts[len(posts)-1]
		since, sinceID = last.Modified, last.ID
	}

	// Posts flagged for sync join the scan regardless of the watermark.
	flagged, err := s.wp.PostsWithMeta(ctx, wordpress.MetaNeedsSync)
	if err != nil {
		return fatalErr("list flagged articles: %w", err)
	}
	for _, id := range flagged {
		if _, ok := candidates[id]; ok {
			continue
		}
		post, err := s.wp.Article(ctx, id)
		if errors.Is(err, wordpress.ErrNotFound) {
			continue
		}
		if err != nil {
			return fatalErr("read article %d: %w", id, err)
		}
		candidates[id] = *post
	}

	for _, post := range candidates {
		d.local[post.ID] = post
		if err := s.classifyLocalArticle(ctx, d, post); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) classifyLocalArticle(ctx context.Context, d *articleDiff, post wordpress.Post) error {
	needsSync, err := s.wp.PostMeta(ctx, post.ID, wordpress.MetaNeedsSync)
	if err != nil {
		return fatalErr("read needs-sync flag: %w", err)
	}
	version, err := s.wp.PostMeta(ctx, post.ID, wordpress.MetaSyncVersion)
	if err != nil {
		return fatalErr("read sync version: %w", err)
	}
	// A post marked clean only stays out when it was synced under the
	// current logic version; a version bump re-pushes it.
	if needsSync == wordpress.NeedsSyncNo && version == s.cfg.MetaVersion {
		s.skipped(models.CollectionArticles, models.TargetAPI)
		return nil
	}
	forced := needsSync == wordpress.NeedsSyncYes || version != s.cfg.MetaVersion

	// Skip echoes of our own pull writes: a post whose modification time
	// is not past the recorded push point has nothing new to say.
	if !forced {
		lastPush, err := s.lastPushTime(ctx, post.ID)
		if err != nil {
			return err
		}
		if !lastPush.IsZero() && !post.Modified.After(lastPush) {
			return nil
		}
	}

	cats, err := s.wp.ArticleCategories(ctx, post.ID)
	if err != nil {
		return fatalErr("read article categories: %w", err)
	}
	allowed := d.filter.AllowedArticleCategories(cats)

	entry, err := s.maps.GetByLocal(models.CollectionArticles, post.ID)
	switch {
	case errors.Is(err, mapstore.ErrNotFound):
		entry = nil
	case err != nil:
		return fatalErr("article mapping lookup: %w", err)
	}

	if len(allowed) == 0 {
		// Out of filter scope. A mapped article is removed remotely and
		// its local sync state cleared; an unmapped one is just skipped.
		if entry != nil {
			d.assign(BucketRemoveAPI, Op{Key: entry.ID, LocalID: post.ID, RemoteID: entry.RemoteID, Name: post.Title})
		} else {
			s.skipped(models.CollectionArticles, models.TargetAPI)
		}
		return nil
	}

	if entry == nil {
		d.assign(BucketOnlyWP, Op{Key: syntheticKey(post.ID), LocalID: post.ID, Name: post.Title})
		return nil
	}
	if _, ok := d.remote[entry.RemoteID]; !ok {
		// The remote counterpart is gone and pulls are off, so no local
		// delete was queued. Leave it alone.
		return nil
	}

	localHash, err := s.localArticleHash(ctx, post, allowed)
	if err != nil {
		return err
	}
	if forced || localHash != entry.LocalHash {
		d.assign(BucketWPToAPI, Op{Key: entry.ID, LocalID: post.ID, RemoteID: entry.RemoteID, Name: post.Title})
	}
	return nil
}

// scanRemoteArticles pages through remote articles modified past the
// pull watermark and classifies each.
func (s *Syncer) scanRemoteArticles(ctx context.Context, d *articleDiff) error {
	watermark, err := s.maps.Watermark(mapstore.DirectionPull)
	if err != nil {
		return fatalErr("read pull watermark: %w", err)
	}

	batch := s.cfg.ArticleBatchSize
	if batch <= 0 {
		batch = 100
	}

	for start := 0; ; start += batch {
		articles, err := s.api.ListArticlesFrom(ctx, watermark, start, batch)
		if err != nil {
			return fatalErr("list remote articles: %w", err)
		}
		for _, ra := range articles {
			d.remote[ra.ID] = ra
			if ra.UpdatedAt.After(d.maxRemoteUpdated) {
				d.maxRemoteUpdated = ra.UpdatedAt
			}
			if err := s.classifyRemoteArticle(ctx, d, ra); err != nil {
				return err
			}
		}
		if len(articles) < batch {
			break
		}
	}
	return nil
}

func (s *Syncer) classifyRemoteArticle(ctx context.Context, d *articleDiff, ra crowdaa.Article) error {
	// An article needs at least one in-scope category to take part.
	// Categories mapped during this run's category phase count from the
	// next run on.
	localCats := s.mappedLocalCategories(ra.Categories)
	if len(d.filter.AllowedArticleCategories(localCats)) == 0 {
		if len(localCats) == 0 {
			if d.remoteHoldback.IsZero() || ra.UpdatedAt.Before(d.remoteHoldback) {
				d.remoteHoldback = ra.UpdatedAt
			}
		}
		s.skipped(models.CollectionArticles, models.TargetWP)
		return nil
	}

	entry, err := s.maps.GetByRemote(models.CollectionArticles, ra.ID)
	if errors.Is(err, mapstore.ErrNotFound) {
		d.assign(BucketOnlyAPI, Op{Key: ra.ID, RemoteID: ra.ID, Name: ra.Title})
		return nil
	}
	if err != nil {
		return fatalErr("article mapping lookup: %w", err)
	}

	post, ok := d.local[entry.LocalID]
	if !ok {
		// Local side missing; the sweep already queued the cleanup.
		return nil
	}

	remoteHash := s.remoteArticleHash(ctx, ra)
	if remoteHash == entry.RemoteHash {
		return nil
	}

	op := Op{Key: entry.ID, LocalID: entry.LocalID, RemoteID: ra.ID, Name: ra.Title}
	if d.assigned[entry.ID] == BucketWPToAPI {
		// Both sides changed. The strictly newer side wins; a tie keeps
		// the local change.
		if ra.UpdatedAt.After(post.Modified) {
			d.reassign(entry.ID, BucketAPIToWP, op)
		}
		return nil
	}
	d.assign(BucketAPIToWP, op)
	return nil
}

// assign adds an op to a bucket unless its key is already placed.
func (d *articleDiff) assign(b Bucket, op Op) {
	if _, ok := d.assigned[op.Key]; ok {
		return
	}
	d.assigned[op.Key] = b
	d.queue.add(b, op)
}

// reassign moves a keyed op from its current bucket to another.
func (d *articleDiff) reassign(key string, to Bucket, op Op) {
	from, ok := d.assigned[key]
	if !ok {
		d.assign(to, op)
		return
	}
	if from == BucketWPToAPI {
		filtered := d.queue.WPToAPI[:0]
		for _, existing := range d.queue.WPToAPI {
			if existing.Key != key {
				filtered = append(filtered, existing)
			}
		}
		d.queue.WPToAPI = filtered
	}
	d.assigned[key] = to
	d.queue.add(to, op)
}

// mappedLocalCategories resolves remote category ids to mapped local
// term ids, dropping unmapped ones.
func (s *Syncer) mappedLocalCategories(remoteIDs []string) []int64 {
	var ids []int64
	for _, rid := range remoteIDs {
		if entry, err := s.maps.GetByRemote(models.CollectionCategories, rid); err == nil {
			ids = append(ids, entry.LocalID)
		}
	}
	return ids
}

// localArticleHash hashes a local post using the names of its in-scope
// categories and its event meta.
func (s *Syncer) localArticleHash(ctx context.Context, post wordpress.Post, allowedCats []int64) (string, error) {
	var names []string
	for _, id := range allowedCats {
		if t, err := s.wp.Category(ctx, id); err == nil {
			names = append(names, t.Name)
		}
	}
	isEvent, start, end, err := s.articleEvent(ctx, post.ID)
	if err != nil {
		return "", err
	}
	return HashArticle(post.Title, post.Content, names, isEvent, start, end), nil
}

// remoteArticleHash hashes a remote article using its mapped category
// names.
func (s *Syncer) remoteArticleHash(ctx context.Context, ra crowdaa.Article) string {
	var names []string
	for _, rid := range ra.Categories {
		if entry, err := s.maps.GetByRemote(models.CollectionCategories, rid); err == nil {
			if t, err := s.wp.Category(ctx, entry.LocalID); err == nil {
				names = append(names, t.Name)
			}
		}
	}
	start, end := time.Time{}, time.Time{}
	if ra.EventStart != nil {
		start = *ra.EventStart
	}
	if ra.EventEnd != nil {
		end = *ra.EventEnd
	}
	return HashArticle(ra.Title, ra.Content, names, ra.IsEvent, start, end)
}

// articleEvent reads the event meta of a post.
func (s *Syncer) articleEvent(ctx context.Context, postID int64) (bool, time.Time, time.Time, error) {
	rawStart, err := s.wp.PostMeta(ctx, postID, wordpress.MetaEventStart)
	if err != nil {
		return false, time.Time{}, time.Time{}, fatalErr("read event start: %w", err)
	}
	if rawStart == "" {
		return false, time.Time{}, time.Time{}, nil
	}
	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return false, time.Time{}, time.Time{}, entityErr("parse event start for %d: %w", postID, err)
	}
	var end time.Time
	rawEnd, err := s.wp.PostMeta(ctx, postID, wordpress.MetaEventEnd)
	if err != nil {
		return false, time.Time{}, time.Time{}, fatalErr("read event end: %w", err)
	}
	if rawEnd != "" {
		if end, err = time.Parse(time.RFC3339, rawEnd); err != nil {
			return false, time.Time{}, time.Time{}, entityErr("parse event end for %d: %w", postID, err)
		}
	}
	return true, start, end, nil
}

func (s *Syncer) lastPushTime(ctx context.Context, postID int64) (time.Time, error) {
	raw, err := s.wp.PostMeta(ctx, postID, wordpress.MetaLastPush)
	if err != nil {
		return time.Time{}, fatalErr("read last push time: %w", err)
	}
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, entityErr("parse last push time for %d: %w", postID, err)
	}
	return ts, nil
}

func (s *Syncer) skipped(c models.Collection, target models.Target) {
	metrics.EntitySkips.WithLabelValues(string(c), string(target)).Inc()
}
