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

	"github.com/common-repository/crowdaa-sync/internal/crowdaa"
	"github.com/common-repository/crowdaa-sync/internal/mapstore"
	"github.com/common-repository/crowdaa-sync/internal/metrics"
	"github.com/common-repository/crowdaa-sync/internal/models"
	"github.com/common-repository/crowdaa-sync/internal/permissions"
)

// badgeDiff carries the classified badge queue together with the
// snapshots it was computed from, so execution does not re-fetch.
type badgeDiff struct {
	queue  *Queue
	local  map[int64]permissions.Perm
	remote map[string]crowdaa.Badge
}

// DiffBadges classifies every membership level and remote badge into
// the operation buckets. Levels map onto badges one to one through the
// identity map.
func (s *Syncer) DiffBadges(ctx context.Context) (*badgeDiff, error) {
	queue := &Queue{
		Collection:   models.CollectionBadges,
		PushDisabled: !s.cfg.PushEnabled,
		PullDisabled: !s.cfg.PullEnabled,
	}

	perms, err := s.perms.Perms(ctx)
	if err != nil {
		return nil, fatalErr("list membership levels: %w", err)
	}
	badges, err := s.api.ListBadges(ctx)
	if err != nil {
		return nil, fatalErr("list badges: %w", err)
	}

	d := &badgeDiff{
		queue:  queue,
		local:  make(map[int64]permissions.Perm, len(perms)),
		remote: make(map[string]crowdaa.Badge, len(badges)),
	}
	for _, p := range perms {
		d.local[p.ID] = p
	}
	for _, b := range badges {
		d.remote[b.ID] = b
	}

	for _, p := range perms {
		entry, err := s.maps.GetByLocal(models.CollectionBadges, p.ID)
		if errors.Is(err, mapstore.ErrNotFound) {
			if s.cfg.PushEnabled {
				queue.add(BucketOnlyWP, Op{Key: syntheticKey(p.ID), LocalID: p.ID, Name: p.Name})
			}
			continue
		}
		if err != nil {
			return nil, fatalErr("badge mapping lookup: %w", err)
		}

		remote, ok := d.remote[entry.RemoteID]
		if !ok {
			// The remote badge is gone, so the level goes too.
			if s.cfg.PullEnabled {
				queue.add(BucketRemoveWP, Op{Key: entry.ID, LocalID: p.ID, RemoteID: entry.RemoteID, Name: p.Name})
			}
			continue
		}

		localHash := HashBadge(p.Name, "", "")
		remoteHash := HashBadge(remote.Name, remote.Management, remote.Access)
		switch {
		case localHash != entry.LocalHash:
			if s.cfg.PushEnabled {
				queue.add(BucketWPToAPI, Op{Key: entry.ID, LocalID: p.ID, RemoteID: remote.ID, Name: p.Name})
			}
		case remoteHash != entry.RemoteHash:
			if s.cfg.PullEnabled {
				queue.add(BucketAPIToWP, Op{Key: entry.ID, LocalID: p.ID, RemoteID: remote.ID, Name: remote.Name})
			}
		}
	}

	for _, b := range badges {
		entry, err := s.maps.GetByRemote(models.CollectionBadges, b.ID)
		if errors.Is(err, mapstore.ErrNotFound) {
			if s.cfg.PullEnabled {
				queue.add(BucketOnlyAPI, Op{Key: b.ID, RemoteID: b.ID, Name: b.Name})
			}
			continue
		}
		if err != nil {
			return nil, fatalErr("badge mapping lookup: %w", err)
		}
		if _, ok := d.local[entry.LocalID]; !ok {
			// The level was deleted locally, so the badge goes too.
			if s.cfg.PushEnabled {
				queue.add(BucketRemoveAPI, Op{Key: entry.ID, LocalID: entry.LocalID, RemoteID: b.ID, Name: b.Name})
			}
		}
	}

	queue.record()
	return d, nil
}

// PushBadges applies the local-to-remote badge buckets.
func (s *Syncer) PushBadges(ctx context.Context, d *badgeDiff, b *budget) []error {
	var errs []error

	for _, op := range d.queue.OnlyWP {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		perm := d.local[op.LocalID]
		created, err := s.api.CreateBadge(ctx, &crowdaa.Badge{Name: perm.Name})
		if err != nil {
			errs = append(errs, s.entityFailure(models.CollectionBadges, models.TargetAPI, entityErr("create badge %q: %w", perm.Name, err)))
			continue
		}
		err = s.maps.Put(&mapstore.Entry{
			Collection: models.CollectionBadges,
			LocalID:    perm.ID,
			RemoteID:   created.ID,
			Version:    s.metaVersion(),
			SyncTime:   time.Now().UTC(),
			LocalHash:  HashBadge(perm.Name, "", ""),
			RemoteHash: HashBadge(created.Name, created.Management, created.Access),
		})
		if err != nil {
			errs = append(errs, entityErr("map badge %q: %w", perm.Name, err))
			continue
		}
		s.applied(models.CollectionBadges, models.OpCreate, models.TargetAPI)
	}

	for _, op := range d.queue.WPToAPI {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		perm := d.local[op.LocalID]
		remote := d.remote[op.RemoteID]
		remote.Name = perm.Name
		if err := s.api.UpdateBadge(ctx, op.RemoteID, &remote); err != nil {
			errs = append(errs, s.entityFailure(models.CollectionBadges, models.TargetAPI, entityErr("update badge %q: %w", perm.Name, err)))
			continue
		}
		if err := s.updateBadgeEntry(op.Key, HashBadge(perm.Name, "", ""), HashBadge(remote.Name, remote.Management, remote.Access)); err != nil {
			errs = append(errs, err)
			continue
		}
		s.applied(models.CollectionBadges, models.OpUpdate, models.TargetAPI)
	}

	for _, op := range d.queue.RemoveAPI {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		if err := s.api.DeleteBadge(ctx, op.RemoteID); err != nil && !crowdaa.IsNotFound(err) {
			errs = append(errs, s.entityFailure(models.CollectionBadges, models.TargetAPI, entityErr("delete badge %q: %w", op.Name, err)))
			continue
		}
		if err := s.maps.Delete(models.CollectionBadges, op.Key); err != nil {
			errs = append(errs, entityErr("unmap badge %q: %w", op.Name, err))
			continue
		}
		s.applied(models.CollectionBadges, models.OpDelete, models.TargetAPI)
	}

	return errs
}

// PullBadges applies the remote-to-local badge buckets.
func (s *Syncer) PullBadges(ctx context.Context, d *badgeDiff, b *budget) []error {
	var errs []error

	for _, op := range d.queue.OnlyAPI {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		remote := d.remote[op.RemoteID]
		levelID, err := s.perms.CreatePerm(ctx, remote.Name)
		if err != nil {
			errs = append(errs, s.entityFailure(models.CollectionBadges, models.TargetWP, entityErr("create level %q: %w", remote.Name, err)))
			continue
		}
		if levelID == 0 {
			// No membership plugin installed; nothing to link.
			metrics.EntitySkips.WithLabelValues(string(models.CollectionBadges), string(models.TargetWP)).Inc()
			continue
		}
		err = s.maps.Put(&mapstore.Entry{
			Collection: models.CollectionBadges,
			LocalID:    levelID,
			RemoteID:   remote.ID,
			Version:    s.metaVersion(),
			SyncTime:   time.Now().UTC(),
			LocalHash:  HashBadge(remote.Name, "", ""),
			RemoteHash: HashBadge(remote.Name, remote.Management, remote.Access),
		})
		if err != nil {
			errs = append(errs, entityErr("map badge %q: %w", remote.Name, err))
			continue
		}
		s.applied(models.CollectionBadges, models.OpCreate, models.TargetWP)
	}

	for _, op := range d.queue.APIToWP {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		remote := d.remote[op.RemoteID]
		if err := s.perms.UpdatePerm(ctx, op.LocalID, remote.Name); err != nil {
			errs = append(errs, s.entityFailure(models.CollectionBadges, models.TargetWP, entityErr("update level %q: %w", remote.Name, err)))
			continue
		}
		if err := s.updateBadgeEntry(op.Key, HashBadge(remote.Name, "", ""), HashBadge(remote.Name, remote.Management, remote.Access)); err != nil {
			errs = append(errs, err)
			continue
		}
		s.applied(models.CollectionBadges, models.OpUpdate, models.TargetWP)
	}

	for _, op := range d.queue.RemoveWP {
		if err := b.check(); err != nil {
			return append(errs, err)
		}
		if err := s.perms.DeletePerm(ctx, op.LocalID); err != nil {
			errs = append(errs, s.entityFailure(models.CollectionBadges, models.TargetWP, entityErr("delete level %q: %w", op.Name, err)))
			continue
		}
		if err := s.maps.Delete(models.CollectionBadges, op.Key); err != nil {
			errs = append(errs, entityErr("unmap badge %q: %w", op.Name, err))
			continue
		}
		s.applied(models.CollectionBadges, models.OpDelete, models.TargetWP)
	}

	return errs
}

// updateBadgeEntry refreshes the stored hash pair after a successful
// update.
func (s *Syncer) updateBadgeEntry(key, localHash, remoteHash string) error {
	entry, err := s.maps.Get(models.CollectionBadges, key)
	if err != nil {
		return entityErr("badge mapping %s: %w", key, err)
	}
	entry.LocalHash = localHash
	entry.RemoteHash = remoteHash
	entry.Version = s.metaVersion()
	entry.SyncTime = time.Now().UTC()
	if err := s.maps.Put(entry); err != nil {
		return entityErr("badge mapping %s: %w", key, err)
	}
	return nil
}

// syntheticKey is the queue key for local entities that have never been
// synced and thus have no identity-map id yet.
func syntheticKey(localID int64) string {
	return "wpid-" + strconv.FormatInt(localID, 10)
}
