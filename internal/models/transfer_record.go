// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/curator/internal/dbinterface"
)

// TransferRecord tracks one source file path ever seen by the pipeline.
// Success is a tri-state: nil means not yet attempted for the current run.
type TransferRecord struct {
	ID           int64      `json:"id"`
	ConfigID     int64      `json:"configId"`
	SrcName      string     `json:"srcname"`
	SrcPath      string     `json:"srcpath"`
	SrcFolder    string     `json:"srcfolder"`
	Success      *bool      `json:"success"`
	Ignored      bool       `json:"ignored"`
	Locked       bool       `json:"locked"`
	Deleted      bool       `json:"deleted"`
	SrcDeleted   bool       `json:"srcdeleted"`
	ForcedName   string     `json:"forcedName"`
	IsEpisode    bool       `json:"isEpisode"`
	Season       int        `json:"season"`
	Episode      int        `json:"episode"`
	TopFolder    string     `json:"topFolder"`
	SecondFolder string     `json:"secondFolder"`
	LinkPath     string     `json:"linkpath"`
	DestPath     string     `json:"destpath"`
	DeadTime     *time.Time `json:"deadtime,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TransferRecordStore handles database operations for transfer records.
type TransferRecordStore struct {
	db dbinterface.Querier
}

func NewTransferRecordStore(db dbinterface.Querier) *TransferRecordStore {
	return &TransferRecordStore{db: db}
}

const transferRecordColumns = `
	id, config_id, srcname, srcpath, srcfolder, success,
	ignored, locked, deleted, srcdeleted, forced_name,
	is_episode, season, episode, top_folder, second_folder,
	linkpath, destpath, deadtime, created_at, updated_at`

// GetOrCreate returns the record for srcpath, inserting a fresh row on first
// sighting. A duplicate sighting under a new submission updates the owning
// config and resets success to pending.
func (s *TransferRecordStore) GetOrCreate(ctx context.Context, configID int64, srcname, srcpath, srcfolder string) (*TransferRecord, error) {
	if srcpath == "" {
		return nil, errors.New("srcpath is required")
	}

	existing, err := s.GetByPath(ctx, srcpath)
	if err == nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE transfer_records
			SET config_id = ?, success = NULL, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, configID, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh transfer record: %w", err)
		}
		return s.Get(ctx, existing.ID)
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_records (config_id, srcname, srcpath, srcfolder)
		VALUES (?, ?, ?, ?)
	`, configID, srcname, srcpath, srcfolder)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Lost a race with a concurrent sighting.
			return s.GetByPath(ctx, srcpath)
		}
		return nil, fmt.Errorf("failed to insert transfer record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.Get(ctx, id)
}

func (s *TransferRecordStore) Get(ctx context.Context, id int64) (*TransferRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+transferRecordColumns+" FROM transfer_records WHERE id = ?", id)

	r, err := scanTransferRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get transfer record: %w", err)
	}
	return r, nil
}

func (s *TransferRecordStore) GetByPath(ctx context.Context, srcpath string) (*TransferRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+transferRecordColumns+" FROM transfer_records WHERE srcpath = ?", srcpath)

	r, err := scanTransferRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get transfer record by path: %w", err)
	}
	return r, nil
}

func (s *TransferRecordStore) ListByDestPath(ctx context.Context, destpath string) ([]*TransferRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT"+transferRecordColumns+" FROM transfer_records WHERE destpath = ?", destpath)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer records by destpath: %w", err)
	}
	defer rows.Close()

	return collectTransferRecords(rows)
}

// Update persists all mutable fields of the record.
func (s *TransferRecordStore) Update(ctx context.Context, r *TransferRecord) error {
	if r == nil {
		return errors.New("transfer record is nil")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transfer_records SET
			config_id = ?, srcname = ?, srcfolder = ?, success = ?,
			ignored = ?, locked = ?, deleted = ?, srcdeleted = ?,
			forced_name = ?, is_episode = ?, season = ?, episode = ?,
			top_folder = ?, second_folder = ?, linkpath = ?, destpath = ?,
			deadtime = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		r.ConfigID, r.SrcName, r.SrcFolder, nullBool(r.Success),
		boolToInt(r.Ignored), boolToInt(r.Locked), boolToInt(r.Deleted), boolToInt(r.SrcDeleted),
		r.ForcedName, boolToInt(r.IsEpisode), r.Season, r.Episode,
		r.TopFolder, r.SecondFolder, r.LinkPath, r.DestPath,
		nullTime(r.DeadTime),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transfer record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// SetSuccess records the outcome of a pipeline run for the record.
func (s *TransferRecordStore) SetSuccess(ctx context.Context, id int64, success bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE transfer_records
		SET success = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, boolToInt(success), id)
	if err != nil {
		return fmt.Errorf("failed to set transfer record success: %w", err)
	}
	return nil
}

// MarkSourceDeleted flags srcdeleted for every record whose srcpath sits
// under the given path prefix.
func (s *TransferRecordStore) MarkSourceDeleted(ctx context.Context, pathPrefix string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfer_records
		SET srcdeleted = 1, updated_at = CURRENT_TIMESTAMP
		WHERE srcpath = ? OR srcpath LIKE ?
	`, pathPrefix, likePrefix(pathPrefix))
	if err != nil {
		return 0, fmt.Errorf("failed to mark source deleted: %w", err)
	}
	return res.RowsAffected()
}

// ReviveByDestPath clears the deletion state of records whose target
// reappeared in the output tree.
func (s *TransferRecordStore) ReviveByDestPath(ctx context.Context, destpath string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfer_records
		SET deleted = 0, deadtime = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE destpath = ?
	`, destpath)
	if err != nil {
		return 0, fmt.Errorf("failed to revive transfer records: %w", err)
	}
	return res.RowsAffected()
}

// MarkDeletedByDestPath flags records whose target vanished from the output
// tree and schedules them for deferred cleanup.
func (s *TransferRecordStore) MarkDeletedByDestPath(ctx context.Context, destpath string, deadtime time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfer_records
		SET deleted = 1, deadtime = ?, updated_at = CURRENT_TIMESTAMP
		WHERE destpath = ? OR destpath LIKE ?
	`, deadtime, destpath, likePrefix(destpath))
	if err != nil {
		return 0, fmt.Errorf("failed to mark transfer records deleted: %w", err)
	}
	return res.RowsAffected()
}

// SoftDelete clears the organization fields, marks the record deleted, and
// sets its dead time. The row itself survives.
func (s *TransferRecordStore) SoftDelete(ctx context.Context, id int64, deadtime time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfer_records SET
			deleted = 1, deadtime = ?,
			top_folder = '', second_folder = '',
			is_episode = 0, season = -1, episode = -1,
			linkpath = '', destpath = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, deadtime, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete transfer record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Delete removes the record row permanently.
func (s *TransferRecordStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM transfer_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListExpired returns records eligible for hard deletion: source gone, or
// dead time elapsed.
func (s *TransferRecordStore) ListExpired(ctx context.Context, now time.Time) ([]*TransferRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT"+transferRecordColumns+` FROM transfer_records
		WHERE srcdeleted = 1 OR (deadtime IS NOT NULL AND deadtime <= ?)`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired transfer records: %w", err)
	}
	defer rows.Close()

	return collectTransferRecords(rows)
}

// ListProtectedDestPaths returns the destination paths of ignored or locked
// records owned by the config. Cleanup passes must leave these files alone
// even when the current run did not place them.
func (s *TransferRecordStore) ListProtectedDestPaths(ctx context.Context, configID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT destpath FROM transfer_records
		WHERE config_id = ? AND destpath != '' AND (ignored = 1 OR locked = 1)
	`, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to list protected destpaths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan destpath: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// RenameTopFolder bulk-moves records from one top folder to another within a
// source folder, reconciling prior records after a folder simplification.
func (s *TransferRecordStore) RenameTopFolder(ctx context.Context, srcfolder, oldTop, newTop string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfer_records
		SET top_folder = ?, updated_at = CURRENT_TIMESTAMP
		WHERE srcfolder = ? AND top_folder = ?
	`, newTop, srcfolder, oldTop)
	if err != nil {
		return 0, fmt.Errorf("failed to rename top folder: %w", err)
	}
	return res.RowsAffected()
}

// Search returns records whose srcname or srcpath contains the query, newest
// first, with pagination.
func (s *TransferRecordStore) Search(ctx context.Context, query string, limit, offset int) ([]*TransferRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}

	like := "%" + escapeLike(query) + "%"

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transfer_records
		WHERE srcname LIKE ? ESCAPE '\' OR srcpath LIKE ? ESCAPE '\'
	`, like, like).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transfer records: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT"+transferRecordColumns+` FROM transfer_records
		WHERE srcname LIKE ? ESCAPE '\' OR srcpath LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC, id DESC
		LIMIT ? OFFSET ?`, like, like, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search transfer records: %w", err)
	}
	defer rows.Close()

	records, err := collectTransferRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func likePrefix(p string) string {
	return escapeLike(strings.TrimSuffix(p, "/")) + "/%"
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func collectTransferRecords(rows *sql.Rows) ([]*TransferRecord, error) {
	var records []*TransferRecord
	for rows.Next() {
		r, err := scanTransferRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanTransferRecord(row rowScanner) (*TransferRecord, error) {
	var r TransferRecord
	var success sql.NullBool
	var ignored, locked, deleted, srcdeleted, isEpisode int
	var deadtime sql.NullTime

	err := row.Scan(
		&r.ID, &r.ConfigID, &r.SrcName, &r.SrcPath, &r.SrcFolder, &success,
		&ignored, &locked, &deleted, &srcdeleted, &r.ForcedName,
		&isEpisode, &r.Season, &r.Episode, &r.TopFolder, &r.SecondFolder,
		&r.LinkPath, &r.DestPath, &deadtime, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if success.Valid {
		r.Success = &success.Bool
	}
	r.Ignored = ignored == 1
	r.Locked = locked == 1
	r.Deleted = deleted == 1
	r.SrcDeleted = srcdeleted == 1
	r.IsEpisode = isEpisode == 1
	if deadtime.Valid {
		t := deadtime.Time
		r.DeadTime = &t
	}

	return &r, nil
}
