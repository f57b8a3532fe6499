// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/common-repository/crowdaa-sync/internal/crowdaa"
	"github.com/common-repository/crowdaa-sync/internal/mapstore"
	"github.com/common-repository/crowdaa-sync/internal/models"
	"github.com/common-repository/crowdaa-sync/internal/wordpress"
)

// categoryDiff carries the classified category queue plus the snapshots
// and filter it was computed from.
type categoryDiff struct {
	queue  *Queue
	filter *Filter
	local  map[int64]wordpress.Term
	remote map[string]crowdaa.Category
	// badge names gating each local category, read from term meta
	localPerms map[int64][]string
}

// MigrateLegacyMappings imports remote category ids written to term
// meta by pre-identity-map plugin versions. It runs once; afterwards
// the marker in the map store short-circuits it.
func (s *Syncer) MigrateLegacyMappings(ctx context.Context) error {
	done, err := s.maps.Migrated(models.CollectionCategories)
	if err != nil {
		return fatalErr("read migration marker: %w", err)
	}
	if done {
		return nil
	}

	terms, err := s.wp.Categories(ctx)
	if err != nil {
		return fatalErr("list categories: %w", err)
	}
	migrated := 0
	for _, t := range terms {
		legacyID, err := s.wp.TermMeta(ctx, t.ID, wordpress.MetaLegacyAPICategoryID)
		if err != nil {
			return fatalErr("read legacy id for term %d: %w", t.ID, err)
		}
		if legacyID == "" {
			continue
		}
		if _, err := s.maps.GetByLocal(models.CollectionCategories, t.ID); err == nil {
			continue
		} else if !errors.Is(err, mapstore.ErrNotFound) {
			return fatalErr("category mapping lookup: %w", err)
		}
		err = s.maps.Put(&mapstore.Entry{
			Collection: models.CollectionCategories,
			LocalID:    t.ID,
			RemoteID:   legacyID,
			Version:    s.metaVersion(),
			SyncTime:   time.Now().UTC(),
		})
		if err != nil {
			if errors.Is(err, mapstore.ErrDuplicate) {
				s.log.Warn().Int64("term_id", t.ID).Str("api_id", legacyID).
					Msg("Legacy category id already mapped, skipping")
				continue
			}
			return fatalErr("import legacy mapping for term %d: %w", t.ID, err)
		}
		migrated++
	}
	if err := s.maps.SetMigrated(models.CollectionCategories); err != nil {
		return fatalErr("write migration marker: %w", err)
	}
	if migrated > 0 {
		s.log.Info().Int("count", migrated).Msg("Imported legacy category mappings")
	}
	return nil
}

// DiffCategories classifies every category on both sides. Categories
// outside the filter scope are excluded from the queue and their stale
// mappings are pruned right away.
func (s *Syncer) DiffCategories(ctx context.Context) (*categoryDiff, error) {
	queue := &Queue{
		Collection:   models.CollectionCategories,
		PushDisabled: !s.cfg.PushEnabled,
		PullDisabled: !s.cfg.PullEnabled,
	}

	terms, err := s.wp.Categories(ctx)
	if err != nil {
		return nil, fatalErr("list categories: %w", err)
	}
	remote, err := s.api.ListCategories(ctx)
	if err != nil {
		return nil, fatalErr("list remote categories: %w", err)
	}

	filter := NewFilter(s.cfg.CategoryMode, s.cfg.CategoryList, terms)

	d := &categoryDiff{
		queue:      queue,
		filter:     filter,
		local:      make(map[int64]wordpress.Term, len(terms)),
		remote:     make(map[string]crowdaa.Category, len(remote)),
		localPerms: make(map[int64][]string),
	}
	for _, t := range terms {
		d.local[t.ID] = t
	}
	for _, c := range remote {
		d.remote[c.ID] = c
	}

	for _, t := range terms {
		if !filter.AllowLocal(t.ID) {
			// Out of scope; drop any mapping so it is not mistaken for a
			// deletion later.
			if entry, err := s.maps.GetByLocal(models.CollectionCategories, t.ID); err == nil {
				if err := s.maps.Delete(models.CollectionCategories, entry.ID); err != nil {
					return nil, fatalErr("prune stale category mapping: %w", err)
				}
			} else if !errors.Is(err, mapstore.ErrNotFound) {
				return nil, fatalErr("category mapping lookup: %w", err)
			}
			continue
		}

		perms, err := s.termBadges(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		d.localPerms[t.ID] = perms

		entry, err := s.maps.GetByLocal(models.CollectionCategories, t.ID)
		if errors.Is(err, mapstore.ErrNotFound) {
			if s.cfg.PushEnabled {
				queue.add(BucketOnlyWP, Op{Key: syntheticKey(t.ID), LocalID: t.ID, Name: t.Name})
			}
			continue
		}
		if err != nil {
			return nil, fatalErr("category mapping lookup: %w", err)
		}

		rc, ok := d.remote[entry.RemoteID]
		if !ok {
			if s.cfg.PullEnabled {
				queue.add(BucketRemoveWP, Op{Key: entry.ID, LocalID: t.ID, RemoteID: entry.RemoteID, Name: t.Name})
			}
			continue
		}

		localHash := s.localCategoryHash(ctx, t, d, perms)
		remoteHash := s.remoteCategoryHash(rc, d)
		switch {
		case localHash != entry.LocalHash:
			if s.cfg.PushEnabled {
				queue.add(BucketWPToAPI, Op{Key: entry.ID, LocalID: t.ID, RemoteID: rc.ID, Name: t.Name})
			}
		case remoteHash != entry.RemoteHash:
			if s.cfg.PullEnabled {
				queue.add(BucketAPIToWP, Op{Key: entry.ID, LocalID: t.ID, RemoteID: rc.ID, Name: rc.Name})
			}
		}
	}

	for _, c := range remote {
		if !filter.AllowRemote(c.Name) {
			continue
		}
		entry, err := s.maps.GetByRemote(models.CollectionCategories, c.ID)
		if errors.Is(err, mapstore.ErrNotFound) {
			if s.cfg.PullEnabled {
				queue.add(BucketOnlyAPI, Op{Key: c.ID, RemoteID: c.ID, Name: c.Name})
			}
			continue
		}
		if err != nil {
			return nil, fatalErr("category mapping lookup: %w", err)
		}
		if _, ok := d.local[entry.LocalID]; !ok {
			if s.cfg.PushEnabled {
				queue.add(BucketRemoveAPI, Op{Key: entry.ID, LocalID: entry.LocalID, RemoteID: c.ID, Name: c.Name})
			}
		}
	}

	queue.record()
	return d, nil
}

// termBadges reads the badge names gating a category from term meta.
func (s *Syncer) termBadges(ctx context.Context, termID int64) ([]string, error) {
	raw, err := s.wp.TermMeta(ctx, termID, wordpress.MetaTermBadges)
	if err != nil {
		return nil, fatalErr("read term badges: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fatalErr("decode term badges for %d: %w", termID, err)
	}
	return names, nil
}

// localCategoryHash hashes a local category; the parent is referenced
// by name.
func (s *Syncer) localCategoryHash(ctx context.Context, t wordpress.Term, d *categoryDiff, perms []string) string {
	parentName := ""
	if parent, ok := d.local[t.Parent]; ok {
		parentName = parent.Name
	}
	hasImage := false
	if img, err := s.wp.TermMeta(ctx, t.ID, wordpress.MetaTermImageID); err == nil && img != "" {
		hasImage = true
	}
	return HashCategory(t.Name, parentName, perms, hasImage)
}

// remoteCategoryHash hashes a remote category; the parent is referenced
// by name.
func (s *Syncer) remoteCategoryHash(c crowdaa.Category, d *categoryDiff) string {
	parentName := ""
	if parent, ok := d.remote[c.ParentID]; ok {
		parentName = parent.Name
	}
	return HashCategory(c.Name, parentName, c.Perms, c.ImageID != "")
}

// PushCategories applies the local-to-remote category buckets. Parents
// are pushed before children inside the create bucket so the remote
// parent link can be resolved immediately.
func (s *Syncer) PushCategories(ctx context.Context, d *categoryDiff, b *budget) []error {
	var errs []error

	for _, op := range orderParentsFirst(d.queue.OnlyWP, d.local) {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		t := d.local[op.LocalID]
		payload := &crowdaa.Category{
			Name:     t.Name,
			ParentID: s.remoteParentID(t.Parent),
			Perms:    d.localPerms[t.ID],
		}
		created, err := s.api.CreateCategory(ctx, payload)
		if err != nil {
			errs = append(errs, s.entityFailure(models.CollectionCategories, models.TargetAPI, entityErr("create category %q: %w", t.Name, err)))
			continue
		}
		err = s.maps.Put(&mapstore.Entry{
			Collection: models.CollectionCategories,
			LocalID:    t.ID,
			RemoteID:   created.ID,
			Version:    s.metaVersion(),
			SyncTime:   time.Now().UTC(),
			LocalHash:  s.localCategoryHash(ctx, t, d, d.localPerms[t.ID]),
			RemoteHash: s.remoteCategoryHash(*created, d),
		})
		if err != nil {
			errs = append(errs, entityErr("map category %q: %w", t.Name, err))
			continue
		}
		d.remote[created.ID] = *created
		s.applied(models.CollectionCategories, models.OpCreate, models.TargetAPI)
	}

	for _, op := range d.queue.WPToAPI {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		t := d.local[op.LocalID]
		rc := d.remote[op.RemoteID]
		payload := &crowdaa.Category{
			Name:     t.Name,
			ParentID: s.remoteParentID(t.Parent),
			Perms:    d.localPerms[t.ID],
			ImageID:  rc.ImageID,
		}
		if err := s.api.UpdateCategory(ctx, op.RemoteID, payload); err != nil {
			errs = append(errs, s.entityFailure(models.CollectionCategories, models.TargetAPI, entityErr("update category %q: %w", t.Name, err)))
			continue
		}
		payload.ID = op.RemoteID
		d.remote[op.RemoteID] = *payload
		if err := s.updateCategoryEntry(op.Key, s.localCategoryHash(ctx, t, d, d.localPerms[t.ID]), s.remoteCategoryHash(*payload, d)); err != nil {
			errs = append(errs, err)
			continue
		}
		s.applied(models.CollectionCategories, models.OpUpdate, models.TargetAPI)
	}

	for _, op := range d.queue.RemoveAPI {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		if err := s.api.DeleteCategory(ctx, op.RemoteID); err != nil && !crowdaa.IsNotFound(err) {
			errs = append(errs, s.entityFailure(models.CollectionCategories, models.TargetAPI, entityErr("delete category %q: %w", op.Name, err)))
			continue
		}
		if err := s.maps.Delete(models.CollectionCategories, op.Key); err != nil {
			errs = append(errs, entityErr("unmap category %q: %w", op.Name, err))
			continue
		}
		s.applied(models.CollectionCategories, models.OpDelete, models.TargetAPI)
	}

	return errs
}

// PullCategories applies the remote-to-local category buckets.
func (s *Syncer) PullCategories(ctx context.Context, d *categoryDiff, b *budget) []error {
	var errs []error

	for _, op := range orderRemoteParentsFirst(d.queue.OnlyAPI, d.remote) {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		rc := d.remote[op.RemoteID]
		parentID := s.localParentID(rc.ParentID)
		termID, err := s.wp.CreateCategory(ctx, rc.Name, slugify(rc.Name), parentID)
		if err != nil {
			errs = append(errs, s.entityFailure(models.CollectionCategories, models.TargetWP, entityErr("create category %q: %w", rc.Name, err)))
			continue
		}
		if err := s.writeTermBadges(ctx, termID, rc.Perms); err != nil {
			errs = append(errs, err)
			continue
		}
		err = s.maps.Put(&mapstore.Entry{
			Collection: models.CollectionCategories,
			LocalID:    termID,
			RemoteID:   rc.ID,
			Version:    s.metaVersion(),
			SyncTime:   time.Now().UTC(),
			LocalHash:  HashCategory(rc.Name, s.localParentName(parentID, d), rc.Perms, false),
			RemoteHash: s.remoteCategoryHash(rc, d),
		})
		if err != nil {
			errs = append(errs, entityErr("map category %q: %w", rc.Name, err))
			continue
		}
		d.local[termID] = wordpress.Term{ID: termID, Name: rc.Name, Slug: slugify(rc.Name), Parent: parentID}
		s.applied(models.CollectionCategories, models.OpCreate, models.TargetWP)
	}

	for _, op := range d.queue.APIToWP {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		rc := d.remote[op.RemoteID]
		parentID := s.localParentID(rc.ParentID)
		if err := s.wp.UpdateCategory(ctx, op.LocalID, rc.Name, slugify(rc.Name), parentID); err != nil {
			errs = append(errs, s.entityFailure(models.CollectionCategories, models.TargetWP, entityErr("update category %q: %w", rc.Name, err)))
			continue
		}
		if err := s.writeTermBadges(ctx, op.LocalID, rc.Perms); err != nil {
			errs = append(errs, err)
			continue
		}
		t := wordpress.Term{ID: op.LocalID, Name: rc.Name, Slug: slugify(rc.Name), Parent: parentID}
		d.local[op.LocalID] = t
		if err := s.updateCategoryEntry(op.Key, s.localCategoryHash(ctx, t, d, rc.Perms), s.remoteCategoryHash(rc, d)); err != nil {
			errs = append(errs, err)
			continue
		}
		s.applied(models.CollectionCategories, models.OpUpdate, models.TargetWP)
	}

	for _, op := range d.queue.RemoveWP {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		if err := s.wp.DeleteCategory(ctx, op.LocalID); err != nil && !errors.Is(err, wordpress.ErrNotFound) {
			errs = append(errs, s.entityFailure(models.CollectionCategories, models.TargetWP, entityErr("delete category %q: %w", op.Name, err)))
			continue
		}
		if err := s.maps.Delete(models.CollectionCategories, op.Key); err != nil {
			errs = append(errs, entityErr("unmap category %q: %w", op.Name, err))
			continue
		}
		s.applied(models.CollectionCategories, models.OpDelete, models.TargetWP)
	}

	return errs
}

func (s *Syncer) writeTermBadges(ctx context.Context, termID int64, perms []string) error {
	if len(perms) == 0 {
		if err := s.wp.DeleteTermMeta(ctx, termID, wordpress.MetaTermBadges); err != nil {
			return entityErr("clear term badges: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return entityErr("encode term badges: %w", err)
	}
	if err := s.wp.SetTermMeta(ctx, termID, wordpress.MetaTermBadges, string(raw)); err != nil {
		return entityErr("write term badges: %w", err)
	}
	return nil
}

// remoteParentID resolves a local parent term to its mapped remote id,
// empty when the parent is unmapped or the category is a root.
func (s *Syncer) remoteParentID(localParent int64) string {
	if localParent == 0 {
		return ""
	}
	entry, err := s.maps.GetByLocal(models.CollectionCategories, localParent)
	if err != nil {
		return ""
	}
	return entry.RemoteID
}

// localParentID resolves a remote parent id to its mapped local term,
// zero when unmapped or root.
func (s *Syncer) localParentID(remoteParent string) int64 {
	if remoteParent == "" {
		return 0
	}
	entry, err := s.maps.GetByRemote(models.CollectionCategories, remoteParent)
	if err != nil {
		return 0
	}
	return entry.LocalID
}

func (s *Syncer) localParentName(parentID int64, d *categoryDiff) string {
	if parent, ok := d.local[parentID]; ok {
		return parent.Name
	}
	return ""
}

func (s *Syncer) updateCategoryEntry(key, localHash, remoteHash string) error {
	entry, err := s.maps.Get(models.CollectionCategories, key)
	if err != nil {
		return entityErr("category mapping %s: %w", key, err)
	}
	entry.LocalHash = localHash
	entry.RemoteHash = remoteHash
	entry.Version = s.metaVersion()
	entry.SyncTime = time.Now().UTC()
	if err := s.maps.Put(entry); err != nil {
		return entityErr("category mapping %s: %w", key, err)
	}
	return nil
}

// orderParentsFirst sorts create ops so parents precede their children.
func orderParentsFirst(ops []Op, terms map[int64]wordpress.Term) []Op {
	ordered := make([]Op, 0, len(ops))
	pending := append([]Op(nil), ops...)
	placed := make(map[int64]bool)

	for len(pending) > 0 {
		progressed := false
		var rest []Op
		for _, op := range pending {
			parent := terms[op.LocalID].Parent
			_, parentQueued := findOp(ops, parent)
			if parent == 0 || placed[parent] || !parentQueued {
				ordered = append(ordered, op)
				placed[op.LocalID] = true
				progressed = true
			} else {
				rest = append(rest, op)
			}
		}
		if !progressed {
			// Parent cycle in queued data; emit the rest in given order.
			ordered = append(ordered, rest...)
			break
		}
		pending = rest
	}
	return ordered
}

func findOp(ops []Op, localID int64) (Op, bool) {
	for _, op := range ops {
		if op.LocalID == localID {
			return op, true
		}
	}
	return Op{}, false
}

// orderRemoteParentsFirst is the pull-side counterpart keyed by remote
// parent ids.
func orderRemoteParentsFirst(ops []Op, remote map[string]crowdaa.Category) []Op {
	ordered := make([]Op, 0, len(ops))
	pending := append([]Op(nil), ops...)
	placed := make(map[string]bool)
	queued := make(map[string]bool, len(ops))
	for _, op := range ops {
		queued[op.RemoteID] = true
	}

	for len(pending) > 0 {
		progressed := false
		var rest []Op
		for _, op := range pending {
			parent := remote[op.RemoteID].ParentID
			if parent == "" || placed[parent] || !queued[parent] {
				ordered = append(ordered, op)
				placed[op.RemoteID] = true
				progressed = true
			} else {
				rest = append(rest, op)
			}
		}
		if !progressed {
			ordered = append(ordered, rest...)
			break
		}
		pending = rest
	}
	return ordered
}

// slugify derives a URL slug from a category name the way WordPress
// does for simple ASCII names.
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	return strings.Trim(slug, "-")
}
