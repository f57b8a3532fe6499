// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"github.com/common-repository/crowdaa-sync/internal/config"
	"github.com/common-repository/crowdaa-sync/internal/wordpress"
)

// Filter decides which categories take part in a run. The configured
// id list matches a category when it names either the category itself
// or the root of its ancestor chain, so filtering a tree only needs its
// root id. Remote categories carry no local ids and are judged by name
// against the local outcome; a remote name unknown locally is allowed
// in blacklist mode and denied in whitelist mode.
type Filter struct {
	mode         config.FilterMode
	allowedLocal map[int64]bool
	allowedNames map[string]bool
	deniedNames  map[string]bool
}

// NewFilter evaluates the filter policy over the full local category
// set. Pass one resolves each category's root ancestor, pass two
// derives the allowed id and name sets used for the rest of the run.
func NewFilter(mode config.FilterMode, ids []int64, categories []wordpress.Term) *Filter {
	listed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		listed[id] = true
	}

	byID := make(map[int64]wordpress.Term, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	f := &Filter{
		mode:         mode,
		allowedLocal: make(map[int64]bool, len(categories)),
		allowedNames: make(map[string]bool, len(categories)),
		deniedNames:  make(map[string]bool),
	}

	for _, c := range categories {
		matched := listed[c.ID] || listed[rootAncestor(c, byID)]
		allowed := matched == (mode == config.FilterWhitelist)
		if allowed {
			f.allowedLocal[c.ID] = true
			f.allowedNames[c.Name] = true
		} else {
			f.deniedNames[c.Name] = true
		}
	}
	return f
}

// rootAncestor walks the parent chain to the root. A visited set guards
// against parent cycles in corrupted term data; the walk stops at the
// first repeated id and reports it as the root.
func rootAncestor(c wordpress.Term, byID map[int64]wordpress.Term) int64 {
	visited := map[int64]bool{c.ID: true}
	current := c
	for current.Parent != 0 {
		parent, ok := byID[current.Parent]
		if !ok || visited[parent.ID] {
			break
		}
		visited[parent.ID] = true
		current = parent
	}
	return current.ID
}

// AllowLocal reports whether a local category id is in scope.
func (f *Filter) AllowLocal(id int64) bool {
	return f.allowedLocal[id]
}

// AllowRemote reports whether a remote category is in scope, judged by
// its name. Names allowed locally win over the unknown-name default.
func (f *Filter) AllowRemote(name string) bool {
	if f.allowedNames[name] {
		return true
	}
	if f.deniedNames[name] {
		return false
	}
	return f.mode == config.FilterBlacklist
}

// AllowedArticleCategories returns the in-scope subset of an article's
// local category ids. An empty result means the article is out of scope
// and must be skipped with cleanup.
func (f *Filter) AllowedArticleCategories(ids []int64) []int64 {
	var allowed []int64
	for _, id := range ids {
		if f.allowedLocal[id] {
			allowed = append(allowed, id)
		}
	}
	return allowed
}
