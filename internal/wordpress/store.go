// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

// Package wordpress is the local content gateway. It reads and writes a
// WordPress database (posts, terms, meta, options and the membership
// plugin tables) through database/sql over the pure-Go sqlite driver.
package wordpress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Post meta keys used to carry sync state on articles.
const (
	MetaAPIPostID     = "crowdaa_api_post_id"
	MetaNeedsSync     = "crowdaa_needs_sync"
	MetaSyncVersion   = "crowdaa_sync_logic_version"
	MetaMediaMap      = "crowdaa_api_media_map"
	MetaFeedPictureID = "crowdaa_api_feedpicture_id"
	MetaLastPush      = "crowdaa_last_push_timestamp"
	MetaEventStart    = "crowdaa_event_start"
	MetaEventEnd      = "crowdaa_event_end"
	MetaNotified      = "crowdaa_notification_sent"
)

// Term meta key holding the remote category id written by plugin
// versions before the identity map existed. Read once during migration.
const MetaLegacyAPICategoryID = "crowdaa_api_category_id"

// Term meta keys carried on categories.
const (
	// MetaTermBadges holds the JSON list of badge names gating a category.
	MetaTermBadges = "crowdaa_badges"
	// MetaTermImageID holds the attachment id of the category image.
	MetaTermImageID = "crowdaa_category_image_id"
)

// Option names read from wp_options.
const (
	OptionDefaultImageID = "crowdaa_default_image_id"
)

// NeedsSync tri-state values stored under MetaNeedsSync.
const (
	NeedsSyncYes   = "yes"
	NeedsSyncNo    = "no"
	NeedsSyncUnset = ""
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("wordpress: not found")

// Term is one category term row joined with its taxonomy data.
type Term struct {
	ID     int64
	Name   string
	Slug   string
	Parent int64
}

// Post is one article row. Modified is the GMT modification time.
type Post struct {
	ID       int64
	Title    string
	Content  string
	Status   string
	Modified time.Time
}

// Attachment is one media library entry.
type Attachment struct {
	ID       int64
	ParentID int64
	URL      string
	MimeType string
}

// Store is the sqlite-backed WordPress gateway.
type Store struct {
	db     *sql.DB
	prefix string
}

// Open opens the WordPress database at path. The standard "wp_" table
// prefix is assumed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open wordpress database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return &Store{db: db, prefix: "wp_"}, nil
}

// NewWithDB wraps an existing handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, prefix: "wp_"}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) table(name string) string {
	return s.prefix + name
}

// Option reads one wp_options value, empty string when unset.
func (s *Store) Option(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT option_value FROM "+s.table("options")+" WHERE option_name = ?", name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read option %s: %w", name, err)
	}
	return value, nil
}

// SetOption upserts one wp_options value.
func (s *Store) SetOption(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO "+s.table("options")+" (option_name, option_value) VALUES (?, ?) "+
			"ON CONFLICT(option_name) DO UPDATE SET option_value = excluded.option_value",
		name, value)
	if err != nil {
		return fmt.Errorf("write option %s: %w", name, err)
	}
	return nil
}
