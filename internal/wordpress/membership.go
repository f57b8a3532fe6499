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

// Level is one membership level row from a membership plugin table.
type Level struct {
	ID   int64
	Name string
}

// PMProLevels lists Paid Memberships Pro levels.
func (s *Store) PMProLevels(ctx context.Context) ([]Level, error) {
	return s.queryLevels(ctx,
		"SELECT id, name FROM "+s.table("pmpro_membership_levels")+" ORDER BY id")
}

// CreatePMProLevel inserts a Paid Memberships Pro level.
func (s *Store) CreatePMProLevel(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO "+s.table("pmpro_membership_levels")+" (name) VALUES (?)", name)
	if err != nil {
		return 0, fmt.Errorf("insert pmpro level: %w", err)
	}
	return res.LastInsertId()
}

// UpdatePMProLevel renames a Paid Memberships Pro level.
func (s *Store) UpdatePMProLevel(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.table("pmpro_membership_levels")+" SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("update pmpro level: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePMProLevel removes a Paid Memberships Pro level and its user
// assignments.
func (s *Store) DeletePMProLevel(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.table("pmpro_memberships_users")+" WHERE membership_id = ?", id); err != nil {
		return fmt.Errorf("delete pmpro assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.table("pmpro_membership_levels")+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete pmpro level: %w", err)
	}
	return tx.Commit()
}

// PMProUserLevels returns the active level ids of a user.
func (s *Store) PMProUserLevels(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT membership_id FROM "+s.table("pmpro_memberships_users")+
			" WHERE user_id = ? AND status = 'active' ORDER BY membership_id", userID)
	if err != nil {
		return nil, fmt.Errorf("list pmpro user levels: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan level id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetPMProUserLevels replaces a user's active level assignments.
func (s *Store) SetPMProUserLevels(ctx context.Context, userID int64, levelIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.table("pmpro_memberships_users")+" WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clear pmpro assignments: %w", err)
	}
	for _, levelID := range levelIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+s.table("pmpro_memberships_users")+
				" (user_id, membership_id, status) VALUES (?, ?, 'active')",
			userID, levelID); err != nil {
			return fmt.Errorf("insert pmpro assignment: %w", err)
		}
	}
	return tx.Commit()
}

// SWPMLevels lists Simple WordPress Membership levels.
func (s *Store) SWPMLevels(ctx context.Context) ([]Level, error) {
	return s.queryLevels(ctx,
		"SELECT id, alias FROM "+s.table("swpm_membership_tbl")+" ORDER BY id")
}

// CreateSWPMLevel inserts a Simple WordPress Membership level.
func (s *Store) CreateSWPMLevel(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO "+s.table("swpm_membership_tbl")+" (alias) VALUES (?)", name)
	if err != nil {
		return 0, fmt.Errorf("insert swpm level: %w", err)
	}
	return res.LastInsertId()
}

// UpdateSWPMLevel renames a Simple WordPress Membership level.
func (s *Store) UpdateSWPMLevel(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.table("swpm_membership_tbl")+" SET alias = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("update swpm level: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSWPMLevel removes a Simple WordPress Membership level.
func (s *Store) DeleteSWPMLevel(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM "+s.table("swpm_membership_tbl")+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete swpm level: %w", err)
	}
	return nil
}

// SWPMUserLevel returns a member's level id, zero when the user is not
// a member.
func (s *Store) SWPMUserLevel(ctx context.Context, memberID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT membership_level FROM "+s.table("swpm_members_tbl")+" WHERE member_id = ?",
		memberID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read swpm member: %w", err)
	}
	return id, nil
}

// SetSWPMUserLevel assigns a member's level.
func (s *Store) SetSWPMUserLevel(ctx context.Context, memberID, levelID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.table("swpm_members_tbl")+" SET membership_level = ? WHERE member_id = ?",
		levelID, memberID)
	if err != nil {
		return fmt.Errorf("update swpm member: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO "+s.table("swpm_members_tbl")+" (member_id, membership_level) VALUES (?, ?)",
		memberID, levelID)
	if err != nil {
		return fmt.Errorf("insert swpm member: %w", err)
	}
	return nil
}

func (s *Store) queryLevels(ctx context.Context, query string) ([]Level, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	defer rows.Close()

	var levels []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}
