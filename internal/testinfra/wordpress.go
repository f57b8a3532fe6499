// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package testinfra

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// wordpressSchema is the subset of the WordPress schema the sync engine
// reads and writes, plus the membership plugin tables.
const wordpressSchema = `
CREATE TABLE wp_terms (
	term_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	slug TEXT NOT NULL DEFAULT ''
);
CREATE TABLE wp_term_taxonomy (
	term_taxonomy_id INTEGER PRIMARY KEY AUTOINCREMENT,
	term_id INTEGER NOT NULL,
	taxonomy TEXT NOT NULL,
	parent INTEGER NOT NULL DEFAULT 0,
	count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE wp_term_relationships (
	object_id INTEGER NOT NULL,
	term_taxonomy_id INTEGER NOT NULL
);
CREATE TABLE wp_termmeta (
	meta_id INTEGER PRIMARY KEY AUTOINCREMENT,
	term_id INTEGER NOT NULL,
	meta_key TEXT NOT NULL,
	meta_value TEXT
);
CREATE TABLE wp_posts (
	ID INTEGER PRIMARY KEY AUTOINCREMENT,
	post_title TEXT NOT NULL DEFAULT '',
	post_content TEXT NOT NULL DEFAULT '',
	post_status TEXT NOT NULL DEFAULT 'publish',
	post_type TEXT NOT NULL DEFAULT 'post',
	post_date_gmt TEXT NOT NULL DEFAULT '',
	post_modified_gmt TEXT NOT NULL DEFAULT '',
	guid TEXT NOT NULL DEFAULT '',
	post_mime_type TEXT NOT NULL DEFAULT '',
	post_parent INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE wp_postmeta (
	meta_id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id INTEGER NOT NULL,
	meta_key TEXT NOT NULL,
	meta_value TEXT
);
CREATE TABLE wp_options (
	option_name TEXT PRIMARY KEY,
	option_value TEXT NOT NULL DEFAULT ''
);
CREATE TABLE wp_pmpro_membership_levels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE TABLE wp_pmpro_memberships_users (
	user_id INTEGER NOT NULL,
	membership_id INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'active'
);
CREATE TABLE wp_swpm_membership_tbl (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	alias TEXT NOT NULL
);
CREATE TABLE wp_swpm_members_tbl (
	member_id INTEGER PRIMARY KEY,
	membership_level INTEGER NOT NULL
);
`

// NewWordPressDB opens an in-memory sqlite database carrying the
// WordPress schema and registers its cleanup on t.
func NewWordPressDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A single connection keeps the in-memory database alive and visible.
	db.SetMaxOpenConns(1)
	_, err = db.Exec(wordpressSchema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
