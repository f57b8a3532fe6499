// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

// Package permissions abstracts over the installed WordPress membership
// plugin. Badges on the remote side map onto membership levels locally;
// which plugin owns those levels is decided once at startup and every
// access goes through the Backend interface.
package permissions

import (
	"context"
	"fmt"
	"sort"

	"github.com/common-repository/crowdaa-sync/internal/logging"
	"github.com/common-repository/crowdaa-sync/internal/wordpress"
)

// Plugin names accepted in configuration.
const (
	PluginNone  = ""
	PluginPMPro = "pmpro"
	PluginSWPM  = "swpm"
)

// Perm is one membership level seen through a backend.
type Perm struct {
	ID   int64
	Name string
}

// Backend is the membership plugin surface the sync engine uses.
type Backend interface {
	// Name identifies the backing plugin for logs.
	Name() string
	Perms(ctx context.Context) ([]Perm, error)
	CreatePerm(ctx context.Context, name string) (int64, error)
	UpdatePerm(ctx context.Context, id int64, name string) error
	DeletePerm(ctx context.Context, id int64) error
	// UserPerms returns the level ids granted to a user.
	UserPerms(ctx context.Context, userID int64) ([]int64, error)
	SetUserPerms(ctx context.Context, userID int64, levelIDs []int64) error
}

// Select picks the backend for the configured plugin name. An unknown
// name falls back to the no-op backend with a warning so a misconfigured
// site still syncs public content.
func Select(plugin string, store *wordpress.Store) Backend {
	switch plugin {
	case PluginPMPro:
		return &pmproBackend{store: store}
	case PluginSWPM:
		return &swpmBackend{store: store}
	case PluginNone:
		return noneBackend{}
	default:
		logging.Warn().Str("plugin", plugin).
			Msg("Unknown membership plugin, badge sync disabled")
		return noneBackend{}
	}
}

// noneBackend is used when no membership plugin is installed. Reads are
// empty, writes are silently dropped.
type noneBackend struct{}

func (noneBackend) Name() string                                   { return "none" }
func (noneBackend) Perms(context.Context) ([]Perm, error)          { return nil, nil }
func (noneBackend) CreatePerm(context.Context, string) (int64, error) { return 0, nil }
func (noneBackend) UpdatePerm(context.Context, int64, string) error   { return nil }
func (noneBackend) DeletePerm(context.Context, int64) error           { return nil }
func (noneBackend) UserPerms(context.Context, int64) ([]int64, error) { return nil, nil }
func (noneBackend) SetUserPerms(context.Context, int64, []int64) error {
	return nil
}

// pmproBackend maps badges onto Paid Memberships Pro levels.
type pmproBackend struct {
	store *wordpress.Store
}

func (b *pmproBackend) Name() string { return PluginPMPro }

func (b *pmproBackend) Perms(ctx context.Context) ([]Perm, error) {
	levels, err := b.store.PMProLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("pmpro levels: %w", err)
	}
	return levelsToPerms(levels), nil
}

func (b *pmproBackend) CreatePerm(ctx context.Context, name string) (int64, error) {
	return b.store.CreatePMProLevel(ctx, name)
}

func (b *pmproBackend) UpdatePerm(ctx context.Context, id int64, name string) error {
	return b.store.UpdatePMProLevel(ctx, id, name)
}

func (b *pmproBackend) DeletePerm(ctx context.Context, id int64) error {
	return b.store.DeletePMProLevel(ctx, id)
}

func (b *pmproBackend) UserPerms(ctx context.Context, userID int64) ([]int64, error) {
	return b.store.PMProUserLevels(ctx, userID)
}

func (b *pmproBackend) SetUserPerms(ctx context.Context, userID int64, levelIDs []int64) error {
	return b.store.SetPMProUserLevels(ctx, userID, levelIDs)
}

// swpmBackend maps badges onto Simple WordPress Membership levels. The
// plugin grants one level per member, so SetUserPerms applies the first
// id only.
type swpmBackend struct {
	store *wordpress.Store
}

func (b *swpmBackend) Name() string { return PluginSWPM }

func (b *swpmBackend) Perms(ctx context.Context) ([]Perm, error) {
	levels, err := b.store.SWPMLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("swpm levels: %w", err)
	}
	return levelsToPerms(levels), nil
}

func (b *swpmBackend) CreatePerm(ctx context.Context, name string) (int64, error) {
	return b.store.CreateSWPMLevel(ctx, name)
}

func (b *swpmBackend) UpdatePerm(ctx context.Context, id int64, name string) error {
	return b.store.UpdateSWPMLevel(ctx, id, name)
}

func (b *swpmBackend) DeletePerm(ctx context.Context, id int64) error {
	return b.store.DeleteSWPMLevel(ctx, id)
}

func (b *swpmBackend) UserPerms(ctx context.Context, userID int64) ([]int64, error) {
	level, err := b.store.SWPMUserLevel(ctx, userID)
	if err != nil {
		return nil, err
	}
	if level == 0 {
		return nil, nil
	}
	return []int64{level}, nil
}

func (b *swpmBackend) SetUserPerms(ctx context.Context, userID int64, levelIDs []int64) error {
	if len(levelIDs) == 0 {
		return b.store.SetSWPMUserLevel(ctx, userID, 0)
	}
	return b.store.SetSWPMUserLevel(ctx, userID, levelIDs[0])
}

func levelsToPerms(levels []wordpress.Level) []Perm {
	perms := make([]Perm, 0, len(levels))
	for _, l := range levels {
		perms = append(perms, Perm{ID: l.ID, Name: l.Name})
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].ID < perms[j].ID })
	return perms
}
