// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// Content hashes decide whether two sides of a link have drifted apart.
// They cover semantic fields only: titles, bodies, names, relations and
// event times. Identifiers and modification timestamps never enter the
// hash, so re-saving an unchanged entity or re-linking it after a
// migration does not force a sync. Field order inside each canonical
// struct is fixed and slices are sorted, which keeps the hash stable
// across runs and restarts.

// badgeContent is the canonical hashed form of a badge.
type badgeContent struct {
	Name       string `json:"name"`
	Management string `json:"management"`
	Access     string `json:"access"`
}

// categoryContent is the canonical hashed form of a category. The
// parent is referenced by name: side-native parent ids differ between
// WordPress and the API, names do not.
type categoryContent struct {
	Name     string   `json:"name"`
	Parent   string   `json:"parent"`
	Perms    []string `json:"perms"`
	HasImage bool     `json:"has_image"`
}

// articleContent is the canonical hashed form of an article. Categories
// are referenced by name for the same reason as category parents.
type articleContent struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Categories []string `json:"categories"`
	IsEvent    bool     `json:"is_event"`
	EventStart string   `json:"event_start"`
	EventEnd   string   `json:"event_end"`
}

func hashContent(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Canonical structs hold only strings, bools and string slices;
		// marshal cannot fail on them.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashBadge hashes a badge's semantic fields with absent management and
// access normalized to their defaults.
func HashBadge(name, management, access string) string {
	if management == "" {
		management = "private-internal"
	}
	if access == "" {
		access = "hidden"
	}
	return hashContent(badgeContent{Name: name, Management: management, Access: access})
}

// HashCategory hashes a category's semantic fields.
func HashCategory(name, parentName string, permNames []string, hasImage bool) string {
	perms := append([]string(nil), permNames...)
	sort.Strings(perms)
	if perms == nil {
		perms = []string{}
	}
	return hashContent(categoryContent{
		Name:     name,
		Parent:   parentName,
		Perms:    perms,
		HasImage: hasImage,
	})
}

// HashArticle hashes an article's semantic fields. Zero event times
// hash as empty strings so non-events are unaffected by the event
// fields.
func HashArticle(title, content string, categoryNames []string, isEvent bool, eventStart, eventEnd time.Time) string {
	cats := append([]string(nil), categoryNames...)
	sort.Strings(cats)
	if cats == nil {
		cats = []string{}
	}
	return hashContent(articleContent{
		Title:      title,
		Content:    content,
		Categories: cats,
		IsEvent:    isEvent,
		EventStart: formatEventTime(eventStart),
		EventEnd:   formatEventTime(eventEnd),
	})
}

func formatEventTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
