// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/common-repository/crowdaa-sync/internal/crowdaa"
	"github.com/common-repository/crowdaa-sync/internal/mapstore"
	"github.com/common-repository/crowdaa-sync/internal/models"
	"github.com/common-repository/crowdaa-sync/internal/wordpress"
)

// PushArticles applies the local-to-remote article buckets.
func (s *Syncer) PushArticles(ctx context.Context, d *articleDiff, b *budget) []error {
	var errs []error

	for _, op := range d.queue.OnlyWP {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		if err := s.createRemoteArticle(ctx, d, op); err != nil {
			errs = append(errs, s.entityFailure(models.CollectionArticles, models.TargetAPI, err))
			continue
		}
		s.applied(models.CollectionArticles, models.OpCreate, models.TargetAPI)
	}

	for _, op := range d.queue.WPToAPI {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		if err := s.updateRemoteArticle(ctx, d, op); err != nil {
			errs = append(errs, s.entityFailure(models.CollectionArticles, models.TargetAPI, err))
			continue
		}
		s.applied(models.CollectionArticles, models.OpUpdate, models.TargetAPI)
	}

	for _, op := range d.queue.RemoveAPI {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		if err := s.removeRemoteArticle(ctx, op); err != nil {
			errs = append(errs, s.entityFailure(models.CollectionArticles, models.TargetAPI, err))
			continue
		}
		s.applied(models.CollectionArticles, models.OpDelete, models.TargetAPI)
	}

	return errs
}

// PullArticles applies the remote-to-local article buckets.
func (s *Syncer) PullArticles(ctx context.Context, d *articleDiff, b *budget) []error {
	var errs []error

	for _, op := range d.queue.OnlyAPI {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		if err := s.createLocalArticle(ctx, op); err != nil {
			errs = append(errs, s.entityFailure(models.CollectionArticles, models.TargetWP, err))
			continue
		}
		s.applied(models.CollectionArticles, models.OpCreate, models.TargetWP)
	}

	for _, op := range d.queue.APIToWP {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		if err := s.updateLocalArticle(ctx, op); err != nil {
			errs = append(errs, s.entityFailure(models.CollectionArticles, models.TargetWP, err))
			continue
		}
		s.applied(models.CollectionArticles, models.OpUpdate, models.TargetWP)
	}

	for _, op := range d.queue.RemoveWP {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		if err := s.removeLocalArticle(ctx, op); err != nil {
			errs = append(errs, s.entityFailure(models.CollectionArticles, models.TargetWP, err))
			continue
		}
		s.applied(models.CollectionArticles, models.OpDelete, models.TargetWP)
	}

	return errs
}

func (s *Syncer) createRemoteArticle(ctx context.Context, d *articleDiff, op Op) error {
	post, ok := d.local[op.LocalID]
	if !ok {
		return entityErr("article %d vanished before push", op.LocalID)
	}
	payload, mediaEntries, allowed, err := s.remoteArticlePayload(ctx, d, post)
	if err != nil {
		return err
	}

	created, err := s.api.CreateArticle(ctx, payload)
	if err != nil {
		return entityErr("create article %q: %w", post.Title, err)
	}

	if err := s.finishArticlePush(ctx, post, created.ID, mediaEntries); err != nil {
		return err
	}

	localHash, err := s.localArticleHash(ctx, post, allowed)
	if err != nil {
		return err
	}
	err = s.maps.Put(&mapstore.Entry{
		Collection: models.CollectionArticles,
		LocalID:    post.ID,
		RemoteID:   created.ID,
		Version:    s.metaVersion(),
		SyncTime:   time.Now().UTC(),
		LocalHash:  localHash,
		RemoteHash: localHash,
	})
	if err != nil {
		return entityErr("map article %q: %w", post.Title, err)
	}
	return nil
}

func (s *Syncer) updateRemoteArticle(ctx context.Context, d *articleDiff, op Op) error {
	post, ok := d.local[op.LocalID]
	if !ok {
		return entityErr("article %d vanished before push", op.LocalID)
	}
	payload, mediaEntries, allowed, err := s.remoteArticlePayload(ctx, d, post)
	if err != nil {
		return err
	}

	draft, err := s.api.UpdateArticleDraft(ctx, op.RemoteID, payload)
	if err != nil {
		return entityErr("update article %q: %w", post.Title, err)
	}

	// The subscriber push notification fires on the first publish of an
	// article and never again.
	notified, err := s.wp.PostMeta(ctx, post.ID, wordpress.MetaNotified)
	if err != nil {
		return fatalErr("read notification flag: %w", err)
	}
	if err := s.api.PublishArticle(ctx, op.RemoteID, draft.DraftID, notified == ""); err != nil {
		return entityErr("publish article %q: %w", post.Title, err)
	}
	if notified == "" {
		if err := s.wp.SetPostMeta(ctx, post.ID, wordpress.MetaNotified, "1"); err != nil {
			return entityErr("set notification flag: %w", err)
		}
	}

	if err := s.finishArticlePush(ctx, post, op.RemoteID, mediaEntries); err != nil {
		return err
	}

	localHash, err := s.localArticleHash(ctx, post, allowed)
	if err != nil {
		return err
	}
	return s.updateArticleEntry(op.Key, localHash, localHash)
}

func (s *Syncer) removeRemoteArticle(ctx context.Context, op Op) error {
	if err := s.api.DeleteArticle(ctx, op.RemoteID); err != nil && !crowdaa.IsNotFound(err) {
		return entityErr("delete article %s: %w", op.RemoteID, err)
	}
	if err := s.maps.Delete(models.CollectionArticles, op.Key); err != nil {
		return entityErr("unmap article %s: %w", op.Key, err)
	}
	// The post may still exist locally when the removal came from the
	// category filter. Its sync state is cleared so a later filter change
	// can resync it from scratch.
	if _, err := s.wp.Article(ctx, op.LocalID); err == nil {
		if err := s.clearArticleSyncMeta(ctx, op.LocalID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) createLocalArticle(ctx context.Context, op Op) error {
	full, err := s.api.GetArticle(ctx, op.RemoteID)
	if crowdaa.IsNotFound(err) {
		// Gone between scan and execution. The next run settles it.
		s.skipped(models.CollectionArticles, models.TargetWP)
		return nil
	}
	if err != nil {
		return entityErr("fetch article %s: %w", op.RemoteID, err)
	}

	postID, err := s.wp.CreateArticle(ctx, full.Title, full.Content, full.UpdatedAt)
	if err != nil {
		return entityErr("create article %q: %w", full.Title, err)
	}

	if err := s.applyRemoteArticle(ctx, postID, full); err != nil {
		return err
	}

	hash := s.remoteArticleHash(ctx, *full)
	err = s.maps.Put(&mapstore.Entry{
		Collection: models.CollectionArticles,
		LocalID:    postID,
		RemoteID:   full.ID,
		Version:    s.metaVersion(),
		SyncTime:   time.Now().UTC(),
		LocalHash:  hash,
		RemoteHash: hash,
	})
	if err != nil {
		return entityErr("map article %q: %w", full.Title, err)
	}
	return nil
}

func (s *Syncer) updateLocalArticle(ctx context.Context, op Op) error {
	full, err := s.api.GetArticle(ctx, op.RemoteID)
	if crowdaa.IsNotFound(err) {
		s.skipped(models.CollectionArticles, models.TargetWP)
		return nil
	}
	if err != nil {
		return entityErr("fetch article %s: %w", op.RemoteID, err)
	}

	if err := s.wp.UpdateArticle(ctx, op.LocalID, full.Title, full.Content, full.UpdatedAt); err != nil {
		return entityErr("update article %q: %w", full.Title, err)
	}
	if err := s.applyRemoteArticle(ctx, op.LocalID, full); err != nil {
		return err
	}

	hash := s.remoteArticleHash(ctx, *full)
	return s.updateArticleEntry(op.Key, hash, hash)
}

func (s *Syncer) removeLocalArticle(ctx context.Context, op Op) error {
	if err := s.wp.DeleteArticle(ctx, op.LocalID); err != nil && !errors.Is(err, wordpress.ErrNotFound) {
		return entityErr("delete article %d: %w", op.LocalID, err)
	}
	if err := s.maps.Delete(models.CollectionArticles, op.Key); err != nil {
		return entityErr("unmap article %s: %w", op.Key, err)
	}
	return nil
}

// remoteArticlePayload builds the remote representation of a local post:
// mapped category ids, uploaded media and the feed picture. Returns the
// payload, the media map to persist after the call succeeds, and the
// in-scope local category ids the content hash is computed over.
func (s *Syncer) remoteArticlePayload(ctx context.Context, d *articleDiff, post wordpress.Post) (*crowdaa.Article, []models.MediaMapEntry, []int64, error) {
	cats, err := s.wp.ArticleCategories(ctx, post.ID)
	if err != nil {
		return nil, nil, nil, fatalErr("read article categories: %w", err)
	}
	allowed := d.filter.AllowedArticleCategories(cats)

	var remoteCats []string
	for _, id := range allowed {
		entry, err := s.maps.GetByLocal(models.CollectionCategories, id)
		if errors.Is(err, mapstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, nil, fatalErr("category mapping lookup: %w", err)
		}
		remoteCats = append(remoteCats, entry.RemoteID)
	}

	mediaEntries, mediaIDs, err := s.pushArticleMedia(ctx, post.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	feedID, err := s.feedPictureID(ctx, post.ID, mediaEntries)
	if err != nil {
		return nil, nil, nil, err
	}

	isEvent, start, end, err := s.articleEvent(ctx, post.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	payload := &crowdaa.Article{
		Title:        post.Title,
		Content:      post.Content,
		Categories:   remoteCats,
		IsEvent:      isEvent,
		FeedPicture:  feedID,
		HideFromFeed: s.hiddenFromFeed(allowed),
	}
	if isEvent {
		payload.EventStart = &start
		if !end.IsZero() {
			payload.EventEnd = &end
		}
	}
	for _, id := range mediaIDs {
		kind := models.MediaImage
		for _, e := range mediaEntries {
			if e.RemoteID == id {
				kind = e.Kind
				break
			}
		}
		payload.Media = append(payload.Media, crowdaa.ArticleMedia{ID: id, Kind: string(kind)})
	}
	return payload, mediaEntries, allowed, nil
}

// hiddenFromFeed reports whether an article stays off the remote feed.
// An empty feed category list keeps every article visible; otherwise an
// article shows only when one of its categories is feed-listed.
func (s *Syncer) hiddenFromFeed(cats []int64) bool {
	if s.cfg.FeedAll() {
		return false
	}
	for _, id := range cats {
		for _, feed := range s.cfg.FeedCategories {
			if id == feed {
				return false
			}
		}
	}
	return true
}

// feedPictureID resolves the remote feed picture: the first image media
// if the article has one, otherwise the site-wide default image uploaded
// on demand and cached in post meta.
func (s *Syncer) feedPictureID(ctx context.Context, postID int64, media []models.MediaMapEntry) (string, error) {
	for _, e := range media {
		if e.Kind == models.MediaImage {
			return e.RemoteID, nil
		}
	}

	raw, err := s.wp.Option(ctx, wordpress.OptionDefaultImageID)
	if err != nil {
		return "", fatalErr("read default image option: %w", err)
	}
	if raw == "" {
		return "", nil
	}
	attID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", entityErr("parse default image id %q: %w", raw, err)
	}

	// Reuse a previous upload of the same attachment.
	cached, err := s.wp.PostMeta(ctx, postID, wordpress.MetaFeedPictureID)
	if err != nil {
		return "", fatalErr("read feed picture meta: %w", err)
	}
	if cached != "" {
		var fp models.FeedPicture
		if err := json.Unmarshal([]byte(cached), &fp); err == nil && fp.AttachmentID == attID {
			return fp.RemoteID, nil
		}
	}

	att, err := s.wp.AttachmentByID(ctx, attID)
	if err != nil {
		return "", entityErr("read default image %d: %w", attID, err)
	}
	payload, err := s.fetchMedia(ctx, att.URL)
	if err != nil {
		return "", entityErr("fetch default image: %w", err)
	}
	fileID, err := s.api.UploadFile(ctx, "feed-picture.jpg", att.MimeType, payload)
	if err != nil {
		return "", entityErr("upload default image: %w", err)
	}

	rawFP, err := json.Marshal(models.FeedPicture{RemoteID: fileID, AttachmentID: attID})
	if err != nil {
		return "", entityErr("encode feed picture meta: %w", err)
	}
	if err := s.wp.SetPostMeta(ctx, postID, wordpress.MetaFeedPictureID, string(rawFP)); err != nil {
		return "", entityErr("write feed picture meta: %w", err)
	}
	return fileID, nil
}

// finishArticlePush records the post's sync state after a successful
// remote write. The push timestamp equals the post's modification time,
// so the next scan recognizes the unchanged post and skips it.
func (s *Syncer) finishArticlePush(ctx context.Context, post wordpress.Post, remoteID string, media []models.MediaMapEntry) error {
	if err := s.wp.SetPostMeta(ctx, post.ID, wordpress.MetaAPIPostID, remoteID); err != nil {
		return entityErr("write remote id meta: %w", err)
	}
	if err := s.writeMediaMap(ctx, post.ID, media); err != nil {
		return err
	}
	if err := s.wp.SetPostMeta(ctx, post.ID, wordpress.MetaLastPush, post.Modified.UTC().Format(time.RFC3339Nano)); err != nil {
		return entityErr("write last push meta: %w", err)
	}
	if err := s.wp.SetPostMeta(ctx, post.ID, wordpress.MetaSyncVersion, s.cfg.MetaVersion); err != nil {
		return entityErr("write sync version meta: %w", err)
	}
	if err := s.wp.SetPostMeta(ctx, post.ID, wordpress.MetaNeedsSync, wordpress.NeedsSyncNo); err != nil {
		return entityErr("write needs-sync meta: %w", err)
	}
	return nil
}

// applyRemoteArticle writes the remote article's categories, media and
// event state onto a local post and stamps its sync meta. The push
// timestamp matches the modification time written by the caller, which
// keeps the next local scan from echoing this pull back to the remote.
func (s *Syncer) applyRemoteArticle(ctx context.Context, postID int64, full *crowdaa.Article) error {
	localCats := s.mappedLocalCategories(full.Categories)
	if err := s.wp.SetArticleCategories(ctx, postID, localCats); err != nil {
		return entityErr("set article categories: %w", err)
	}

	refs := make([]models.MediaRef, 0, len(full.Media))
	for _, m := range full.Media {
		kind := models.MediaImage
		if models.MediaKind(m.Kind) == models.MediaVideo {
			kind = models.MediaVideo
		}
		refs = append(refs, models.MediaRef{Kind: kind, RemoteID: m.ID, URL: m.URL})
	}
	mediaEntries, err := s.pullArticleMedia(ctx, postID, refs)
	if err != nil {
		return err
	}
	if err := s.writeMediaMap(ctx, postID, mediaEntries); err != nil {
		return err
	}

	if full.IsEvent && full.EventStart != nil {
		if err := s.wp.SetPostMeta(ctx, postID, wordpress.MetaEventStart, full.EventStart.UTC().Format(time.RFC3339)); err != nil {
			return entityErr("write event start meta: %w", err)
		}
		if full.EventEnd != nil {
			if err := s.wp.SetPostMeta(ctx, postID, wordpress.MetaEventEnd, full.EventEnd.UTC().Format(time.RFC3339)); err != nil {
				return entityErr("write event end meta: %w", err)
			}
		} else if err := s.wp.DeletePostMeta(ctx, postID, wordpress.MetaEventEnd); err != nil {
			return entityErr("clear event end meta: %w", err)
		}
	} else {
		if err := s.wp.DeletePostMeta(ctx, postID, wordpress.MetaEventStart); err != nil {
			return entityErr("clear event start meta: %w", err)
		}
		if err := s.wp.DeletePostMeta(ctx, postID, wordpress.MetaEventEnd); err != nil {
			return entityErr("clear event end meta: %w", err)
		}
	}

	if err := s.wp.SetPostMeta(ctx, postID, wordpress.MetaAPIPostID, full.ID); err != nil {
		return entityErr("write remote id meta: %w", err)
	}
	if err := s.wp.SetPostMeta(ctx, postID, wordpress.MetaLastPush, full.UpdatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return entityErr("write last push meta: %w", err)
	}
	if err := s.wp.SetPostMeta(ctx, postID, wordpress.MetaSyncVersion, s.cfg.MetaVersion); err != nil {
		return entityErr("write sync version meta: %w", err)
	}
	if err := s.wp.SetPostMeta(ctx, postID, wordpress.MetaNeedsSync, wordpress.NeedsSyncNo); err != nil {
		return entityErr("write needs-sync meta: %w", err)
	}
	return nil
}

// clearArticleSyncMeta detaches a post from its remote counterpart.
func (s *Syncer) clearArticleSyncMeta(ctx context.Context, postID int64) error {
	for _, key := range []string{
		wordpress.MetaAPIPostID,
		wordpress.MetaMediaMap,
		wordpress.MetaFeedPictureID,
		wordpress.MetaLastPush,
		wordpress.MetaSyncVersion,
	} {
		if err := s.wp.DeletePostMeta(ctx, postID, key); err != nil {
			return entityErr("clear %s meta: %w", key, err)
		}
	}
	if err := s.wp.SetPostMeta(ctx, postID, wordpress.MetaNeedsSync, wordpress.NeedsSyncNo); err != nil {
		return entityErr("write needs-sync meta: %w", err)
	}
	return nil
}

// updateArticleEntry refreshes the stored hash pair after a successful
// update.
func (s *Syncer) updateArticleEntry(key, localHash, remoteHash string) error {
	entry, err := s.maps.Get(models.CollectionArticles, key)
	if err != nil {
		return entityErr("article mapping %s: %w", key, err)
	}
	entry.LocalHash = localHash
	entry.RemoteHash = remoteHash
	entry.Version = s.metaVersion()
	entry.SyncTime = time.Now().UTC()
	if err := s.maps.Put(entry); err != nil {
		return entityErr("article mapping %s: %w", key, err)
	}
	return nil
}
