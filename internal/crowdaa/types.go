// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package crowdaa

import "time"

// Category is a remote press category.
type Category struct {
	ID       string   `json:"_id,omitempty"`
	Name     string   `json:"name"`
	ParentID string   `json:"parentId,omitempty"`
	Perms    []string `json:"perms,omitempty"`
	ImageID  string   `json:"image,omitempty"`
}

// Badge is a remote user badge.
type Badge struct {
	ID         string `json:"_id,omitempty"`
	Name       string `json:"name"`
	Management string `json:"management,omitempty"`
	Access     string `json:"access,omitempty"`
}

// ArticleMedia is one media asset attached to a remote article.
type ArticleMedia struct {
	ID   string `json:"_id,omitempty"`
	Kind string `json:"kind,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Article is a remote press article. UpdatedAt is the remote
// modification timestamp the pull cursor advances on.
type Article struct {
	ID          string         `json:"_id,omitempty"`
	Title       string         `json:"title"`
	Content     string         `json:"content,omitempty"`
	Categories  []string       `json:"categories,omitempty"`
	IsEvent     bool           `json:"isEvent,omitempty"`
	EventStart  *time.Time     `json:"eventStart,omitempty"`
	EventEnd    *time.Time     `json:"eventEnd,omitempty"`
	Media        []ArticleMedia `json:"medias,omitempty"`
	FeedPicture  string         `json:"feedPicture,omitempty"`
	HideFromFeed bool           `json:"hideFromFeed,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt,omitempty"`
}

// ArticleDraft is the response of an article update; the draft must be
// published before it becomes visible.
type ArticleDraft struct {
	DraftID string `json:"draftId"`
}

// FileTicket is the response of a file creation request: the asset id
// plus a presigned URL the payload is uploaded to.
type FileTicket struct {
	FileID    string `json:"fileId"`
	UploadURL string `json:"uploadUrl"`
}
