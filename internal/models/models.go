// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

// Package models defines the shared data shapes exchanged between the
// WordPress gateway, the Crowdaa API client and the sync engine:
// entity snapshots, opqueue payloads and media mapping records.
package models

import "time"

// Collection identifies one synchronized entity family.
type Collection string

const (
	CollectionBadges     Collection = "badges"
	CollectionCategories Collection = "categories"
	CollectionArticles   Collection = "articles"
)

// Operation is an applied change kind, used in logs and metrics.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Target names the side of the link an operation is applied to.
type Target string

const (
	TargetWP  Target = "wp"
	TargetAPI Target = "api"
)

// Badge access levels. Absent management defaults to private-internal,
// absent access defaults to hidden.
const (
	BadgeManagementPrivate = "private-internal"
	BadgeManagementRequest = "request"
	BadgeManagementPublic  = "public"
	BadgeAccessHidden      = "hidden"
)

// BadgeSnapshot is the semantic state of an access badge on either side.
type BadgeSnapshot struct {
	LocalID    int64  `json:"wp_id,omitempty"`
	RemoteID   string `json:"api_id,omitempty"`
	Name       string `json:"name"`
	Management string `json:"management"`
	Access     string `json:"access"`
}

// Public reports whether the badge is visible to end users; only
// request and public management modes are.
func (b BadgeSnapshot) Public() bool {
	return b.Management == BadgeManagementRequest || b.Management == BadgeManagementPublic
}

// CategorySnapshot is the semantic state of a category on either side.
// Parent references use the side-native identifier of the parent.
type CategorySnapshot struct {
	LocalID        int64    `json:"wp_id,omitempty"`
	RemoteID       string   `json:"api_id,omitempty"`
	Name           string   `json:"name"`
	Slug           string   `json:"slug,omitempty"`
	LocalParentID  int64    `json:"parent_wp_id,omitempty"`
	RemoteParentID string   `json:"parentId,omitempty"`
	BadgeNames     []string `json:"perms,omitempty"`
	ImageURL       string   `json:"image,omitempty"`
	LocalImageID   int64    `json:"image_wp_id,omitempty"`
}

// ArticleSnapshot is the semantic state of an article on either side.
type ArticleSnapshot struct {
	LocalID       int64     `json:"wp_id,omitempty"`
	RemoteID      string    `json:"api_id,omitempty"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Status        string    `json:"status,omitempty"`
	CategoryLocal []int64   `json:"category_wp_ids,omitempty"`
	CategoryAPI   []string  `json:"category_api_ids,omitempty"`
	IsEvent       bool      `json:"isEvent,omitempty"`
	EventStart    time.Time `json:"event_start,omitempty"`
	EventEnd      time.Time `json:"event_end,omitempty"`
	Modified      time.Time `json:"modified,omitempty"`
	Media         []MediaRef
}

// MediaKind distinguishes the flavors of attached media.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaRef points at one media asset attached to an article.
type MediaRef struct {
	Kind     MediaKind `json:"kind"`
	LocalID  int64     `json:"wp_id,omitempty"`
	RemoteID string    `json:"api_id,omitempty"`
	URL      string    `json:"url,omitempty"`
}

// MediaMapEntry links one remote media asset to one local attachment.
// Stored per article as a list under the article's media map meta.
type MediaMapEntry struct {
	RemoteID     string    `json:"api_id"`
	AttachmentID int64     `json:"wp_id"`
	Kind         MediaKind `json:"kind"`
}

// FeedPicture pairs the remote feed picture id with the local attachment
// it was generated from.
type FeedPicture struct {
	RemoteID     string `json:"api_id"`
	AttachmentID int64  `json:"wp_id"`
}
