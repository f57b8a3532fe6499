// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package wordpress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// wpTimeLayout is the MySQL datetime format WordPress stores GMT
// timestamps in.
const wpTimeLayout = "2006-01-02 15:04:05"

// ArticlesModifiedSince returns published posts past the (since, sinceID)
// cursor in (modification time, id) order, at most limit rows. Rows
// sharing the cursor's modification second are included when their id is
// greater, so paging through a burst of same-second edits loses nothing.
func (s *Store) ArticlesModifiedSince(ctx context.Context, since time.Time, sinceID int64, limit int) ([]Post, error) {
	cursor := since.UTC().Format(wpTimeLayout)
	rows, err := s.db.QueryContext(ctx,
		"SELECT ID, post_title, post_content, post_status, post_modified_gmt "+
			"FROM "+s.table("posts")+" "+
			"WHERE post_type = 'post' AND post_status = 'publish' "+
			"AND (post_modified_gmt > ? OR (post_modified_gmt = ? AND ID > ?)) "+
			"ORDER BY post_modified_gmt ASC, ID ASC LIMIT ?",
		cursor, cursor, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list modified articles: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// Articles returns every published post.
func (s *Store) Articles(ctx context.Context) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ID, post_title, post_content, post_status, post_modified_gmt "+
			"FROM "+s.table("posts")+" "+
			"WHERE post_type = 'post' AND post_status = 'publish' ORDER BY ID")
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

func scanPosts(rows *sql.Rows) ([]Post, error) {
	var posts []Post
	for rows.Next() {
		var p Post
		var modified string
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Status, &modified); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		ts, err := time.ParseInLocation(wpTimeLayout, modified, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse modified time: %w", err)
		}
		p.Modified = ts
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Article returns one post by id regardless of status.
func (s *Store) Article(ctx context.Context, id int64) (*Post, error) {
	var p Post
	var modified string
	err := s.db.QueryRowContext(ctx,
		"SELECT ID, post_title, post_content, post_status, post_modified_gmt "+
			"FROM "+s.table("posts")+" WHERE ID = ? AND post_type = 'post'", id,
	).Scan(&p.ID, &p.Title, &p.Content, &p.Status, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read article %d: %w", id, err)
	}
	ts, err := time.ParseInLocation(wpTimeLayout, modified, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse modified time: %w", err)
	}
	p.Modified = ts
	return &p, nil
}

// CreateArticle inserts a published post and returns its id. The
// modification time is recorded as now unless modified is non-zero.
func (s *Store) CreateArticle(ctx context.Context, title, content string, modified time.Time) (int64, error) {
	if modified.IsZero() {
		modified = time.Now().UTC()
	}
	ts := modified.UTC().Format(wpTimeLayout)
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO "+s.table("posts")+
			" (post_title, post_content, post_status, post_type, post_date_gmt, post_modified_gmt, guid, post_mime_type, post_parent) "+
			"VALUES (?, ?, 'publish', 'post', ?, ?, '', '', 0)",
		title, content, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("article id: %w", err)
	}
	return id, nil
}

// UpdateArticle rewrites a post's title and content and stamps the
// modification time.
func (s *Store) UpdateArticle(ctx context.Context, id int64, title, content string, modified time.Time) error {
	if modified.IsZero() {
		modified = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.table("posts")+" SET post_title = ?, post_content = ?, post_modified_gmt = ? "+
			"WHERE ID = ? AND post_type = 'post'",
		title, content, modified.UTC().Format(wpTimeLayout), id)
	if err != nil {
		return fmt.Errorf("update article %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteArticle removes a post, its meta and its category relationships.
func (s *Store) DeleteArticle(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.table("term_relationships")+" WHERE object_id = ?", id); err != nil {
		return fmt.Errorf("delete relationships: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.table("postmeta")+" WHERE post_id = ?", id); err != nil {
		return fmt.Errorf("delete post meta: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.table("posts")+" WHERE ID = ?", id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return tx.Commit()
}

// ArticleCategories returns the category term ids attached to a post.
func (s *Store) ArticleCategories(ctx context.Context, postID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT tt.term_id FROM "+s.table("term_relationships")+" tr "+
			"JOIN "+s.table("term_taxonomy")+" tt ON tt.term_taxonomy_id = tr.term_taxonomy_id "+
			"WHERE tr.object_id = ? AND tt.taxonomy = 'category' ORDER BY tt.term_id",
		postID)
	if err != nil {
		return nil, fmt.Errorf("list article categories: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan term id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetArticleCategories replaces a post's category assignments.
func (s *Store) SetArticleCategories(ctx context.Context, postID int64, termIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM "+s.table("term_relationships")+" WHERE object_id = ? AND term_taxonomy_id IN "+
			"(SELECT term_taxonomy_id FROM "+s.table("term_taxonomy")+" WHERE taxonomy = 'category')",
		postID)
	if err != nil {
		return fmt.Errorf("clear relationships: %w", err)
	}
	for _, termID := range termIDs {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO "+s.table("term_relationships")+" (object_id, term_taxonomy_id) "+
				"SELECT ?, term_taxonomy_id FROM "+s.table("term_taxonomy")+
				" WHERE term_id = ? AND taxonomy = 'category'",
			postID, termID)
		if err != nil {
			return fmt.Errorf("insert relationship: %w", err)
		}
	}
	return tx.Commit()
}

// PostMeta reads one post meta value, empty string when unset.
func (s *Store) PostMeta(ctx context.Context, postID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT meta_value FROM "+s.table("postmeta")+" WHERE post_id = ? AND meta_key = ?",
		postID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read post meta %s: %w", key, err)
	}
	return value, nil
}

// SetPostMeta upserts one post meta value.
func (s *Store) SetPostMeta(ctx context.Context, postID int64, key, value string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.table("postmeta")+" SET meta_value = ? WHERE post_id = ? AND meta_key = ?",
		value, postID, key)
	if err != nil {
		return fmt.Errorf("update post meta %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO "+s.table("postmeta")+" (post_id, meta_key, meta_value) VALUES (?, ?, ?)",
		postID, key, value)
	if err != nil {
		return fmt.Errorf("insert post meta %s: %w", key, err)
	}
	return nil
}

// DeletePostMeta removes one post meta key.
func (s *Store) DeletePostMeta(ctx context.Context, postID int64, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM "+s.table("postmeta")+" WHERE post_id = ? AND meta_key = ?", postID, key)
	if err != nil {
		return fmt.Errorf("delete post meta %s: %w", key, err)
	}
	return nil
}

// PostsWithMeta returns the ids of posts that carry the given meta key.
func (s *Store) PostsWithMeta(ctx context.Context, key string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT pm.post_id FROM "+s.table("postmeta")+" pm "+
			"JOIN "+s.table("posts")+" p ON p.ID = pm.post_id "+
			"WHERE pm.meta_key = ? AND p.post_type = 'post' ORDER BY pm.post_id", key)
	if err != nil {
		return nil, fmt.Errorf("list posts with meta %s: %w", key, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan post id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateAttachment records a media library entry attached to a post and
// returns its id.
func (s *Store) CreateAttachment(ctx context.Context, parentID int64, url, mimeType string) (int64, error) {
	ts := time.Now().UTC().Format(wpTimeLayout)
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO "+s.table("posts")+
			" (post_title, post_content, post_status, post_type, post_date_gmt, post_modified_gmt, guid, post_mime_type, post_parent) "+
			"VALUES ('', '', 'inherit', 'attachment', ?, ?, ?, ?, ?)",
		ts, ts, url, mimeType, parentID)
	if err != nil {
		return 0, fmt.Errorf("insert attachment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("attachment id: %w", err)
	}
	return id, nil
}

// AttachmentByID returns one media library entry.
func (s *Store) AttachmentByID(ctx context.Context, id int64) (*Attachment, error) {
	var a Attachment
	err := s.db.QueryRowContext(ctx,
		"SELECT ID, post_parent, guid, post_mime_type FROM "+s.table("posts")+
			" WHERE ID = ? AND post_type = 'attachment'", id,
	).Scan(&a.ID, &a.ParentID, &a.URL, &a.MimeType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read attachment %d: %w", id, err)
	}
	return &a, nil
}

// Attachments returns the media library entries attached to a post.
func (s *Store) Attachments(ctx context.Context, parentID int64) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ID, post_parent, guid, post_mime_type FROM "+s.table("posts")+
			" WHERE post_parent = ? AND post_type = 'attachment' ORDER BY ID", parentID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var atts []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.ParentID, &a.URL, &a.MimeType); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}
