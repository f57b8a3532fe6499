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
)

// Categories returns every term of the category taxonomy.
func (s *Store) Categories(ctx context.Context) ([]Term, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT t.term_id, t.name, t.slug, tt.parent "+
			"FROM "+s.table("terms")+" t "+
			"JOIN "+s.table("term_taxonomy")+" tt ON tt.term_id = t.term_id "+
			"WHERE tt.taxonomy = 'category' ORDER BY t.term_id")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var terms []Term
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Parent); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// Category returns one category term by id.
func (s *Store) Category(ctx context.Context, id int64) (*Term, error) {
	var t Term
	err := s.db.QueryRowContext(ctx,
		"SELECT t.term_id, t.name, t.slug, tt.parent "+
			"FROM "+s.table("terms")+" t "+
			"JOIN "+s.table("term_taxonomy")+" tt ON tt.term_id = t.term_id "+
			"WHERE tt.taxonomy = 'category' AND t.term_id = ?", id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read category %d: %w", id, err)
	}
	return &t, nil
}

// CreateCategory inserts a term plus its taxonomy row and returns the
// new term id.
func (s *Store) CreateCategory(ctx context.Context, name, slug string, parent int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO "+s.table("terms")+" (name, slug) VALUES (?, ?)", name, slug)
	if err != nil {
		return 0, fmt.Errorf("insert term: %w", err)
	}
	termID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("term id: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+s.table("term_taxonomy")+" (term_id, taxonomy, parent, count) VALUES (?, 'category', ?, 0)",
		termID, parent)
	if err != nil {
		return 0, fmt.Errorf("insert taxonomy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return termID, nil
}

// UpdateCategory rewrites a category's name, slug and parent.
func (s *Store) UpdateCategory(ctx context.Context, id int64, name, slug string, parent int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE "+s.table("terms")+" SET name = ?, slug = ? WHERE term_id = ?", name, slug, id)
	if err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE "+s.table("term_taxonomy")+" SET parent = ? WHERE term_id = ? AND taxonomy = 'category'",
		parent, id)
	if err != nil {
		return fmt.Errorf("update taxonomy: %w", err)
	}
	return tx.Commit()
}

// DeleteCategory removes a category term, its taxonomy row, its meta and
// its article relationships.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM "+s.table("term_relationships")+" WHERE term_taxonomy_id IN "+
			"(SELECT term_taxonomy_id FROM "+s.table("term_taxonomy")+" WHERE term_id = ?)", id)
	if err != nil {
		return fmt.Errorf("delete relationships: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.table("term_taxonomy")+" WHERE term_id = ?", id); err != nil {
		return fmt.Errorf("delete taxonomy: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.table("termmeta")+" WHERE term_id = ?", id); err != nil {
		return fmt.Errorf("delete term meta: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.table("terms")+" WHERE term_id = ?", id); err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	return tx.Commit()
}

// TermMeta reads one term meta value, empty string when unset.
func (s *Store) TermMeta(ctx context.Context, termID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT meta_value FROM "+s.table("termmeta")+" WHERE term_id = ? AND meta_key = ?",
		termID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read term meta %s: %w", key, err)
	}
	return value, nil
}

// SetTermMeta upserts one term meta value.
func (s *Store) SetTermMeta(ctx context.Context, termID int64, key, value string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.table("termmeta")+" SET meta_value = ? WHERE term_id = ? AND meta_key = ?",
		value, termID, key)
	if err != nil {
		return fmt.Errorf("update term meta %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO "+s.table("termmeta")+" (term_id, meta_key, meta_value) VALUES (?, ?, ?)",
		termID, key, value)
	if err != nil {
		return fmt.Errorf("insert term meta %s: %w", key, err)
	}
	return nil
}

// DeleteTermMeta removes one term meta key.
func (s *Store) DeleteTermMeta(ctx context.Context, termID int64, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM "+s.table("termmeta")+" WHERE term_id = ? AND meta_key = ?", termID, key)
	if err != nil {
		return fmt.Errorf("delete term meta %s: %w", key, err)
	}
	return nil
}
