// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/curator/internal/dbinterface"
)

// ContentType selects the planner behavior for a pipeline.
type ContentType string

const (
	ContentTypeMovie  ContentType = "movie"
	ContentTypeSeries ContentType = "series"
)

// Operation is the filesystem action applied to each transferred file.
type Operation string

const (
	OperationHardlink Operation = "hardlink"
	OperationSymlink  Operation = "symlink"
	OperationMove     Operation = "move"
	OperationCopy     Operation = "copy"
)

var validOperations = map[Operation]struct{}{
	OperationHardlink: {},
	OperationSymlink:  {},
	OperationMove:     {},
	OperationCopy:     {},
}

func (o Operation) IsValid() bool {
	_, ok := validOperations[o]
	return ok
}

// TransferConfig is a user-defined ingest pipeline: where to watch, where to
// place files, and how.
type TransferConfig struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	ContentType    ContentType `json:"contentType"`
	Operation      Operation   `json:"operation"`
	SourceFolder   string      `json:"sourceFolder"`
	OutputFolder   string      `json:"outputFolder"`
	FailedFolder   string      `json:"failedFolder"`
	EscapeFolders  string      `json:"escapeFolders"`
	EscapeLiterals string      `json:"escapeLiterals"`
	EscapeSize     int64       `json:"escapeSize"`
	AutoWatch      bool        `json:"autoWatch"`
	CleanOthers    bool        `json:"cleanOthers"`
	OptimizeName   bool        `json:"optimizeName"`
	Enabled        bool        `json:"enabled"`
	ScrapeEnabled  bool        `json:"scrapeEnabled"`
	ScrapingID     *int64      `json:"scrapingId,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// TransferConfigStore handles database operations for transfer configs.
type TransferConfigStore struct {
	db dbinterface.Querier
}

func NewTransferConfigStore(db dbinterface.Querier) *TransferConfigStore {
	return &TransferConfigStore{db: db}
}

func (s *TransferConfigStore) Create(ctx context.Context, c *TransferConfig) (*TransferConfig, error) {
	if c == nil {
		return nil, errors.New("transfer config is nil")
	}
	if c.SourceFolder == "" {
		return nil, errors.New("source folder is required")
	}
	if c.OutputFolder == "" {
		return nil, errors.New("output folder is required")
	}
	if c.ContentType == "" {
		c.ContentType = ContentTypeMovie
	}
	if c.Operation == "" {
		c.Operation = OperationHardlink
	}
	if !c.Operation.IsValid() {
		return nil, fmt.Errorf("invalid operation: %s", c.Operation)
	}

	var scrapingID sql.NullInt64
	if c.ScrapingID != nil {
		scrapingID = sql.NullInt64{Int64: *c.ScrapingID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_configs (
			name, description, content_type, operation,
			source_folder, output_folder, failed_folder,
			escape_folders, escape_literals, escape_size,
			auto_watch, clean_others, optimize_name, enabled,
			sc_enabled, sc_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.Name, c.Description, c.ContentType, c.Operation,
		c.SourceFolder, c.OutputFolder, c.FailedFolder,
		c.EscapeFolders, c.EscapeLiterals, c.EscapeSize,
		boolToInt(c.AutoWatch), boolToInt(c.CleanOthers), boolToInt(c.OptimizeName), boolToInt(c.Enabled),
		boolToInt(c.ScrapeEnabled), scrapingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transfer config: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.Get(ctx, id)
}

func (s *TransferConfigStore) Get(ctx context.Context, id int64) (*TransferConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, content_type, operation,
			source_folder, output_folder, failed_folder,
			escape_folders, escape_literals, escape_size,
			auto_watch, clean_others, optimize_name, enabled,
			sc_enabled, sc_id, created_at, updated_at
		FROM transfer_configs
		WHERE id = ?
	`, id)

	c, err := scanTransferConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get transfer config: %w", err)
	}
	return c, nil
}

func (s *TransferConfigStore) List(ctx context.Context) ([]*TransferConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, content_type, operation,
			source_folder, output_folder, failed_folder,
			escape_folders, escape_literals, escape_size,
			auto_watch, clean_others, optimize_name, enabled,
			sc_enabled, sc_id, created_at, updated_at
		FROM transfer_configs
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer configs: %w", err)
	}
	defer rows.Close()

	var configs []*TransferConfig
	for rows.Next() {
		c, err := scanTransferConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// ListWatched returns enabled configs with auto_watch set; these drive the
// directory monitor.
func (s *TransferConfigStore) ListWatched(ctx context.Context) ([]*TransferConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, content_type, operation,
			source_folder, output_folder, failed_folder,
			escape_folders, escape_literals, escape_size,
			auto_watch, clean_others, optimize_name, enabled,
			sc_enabled, sc_id, created_at, updated_at
		FROM transfer_configs
		WHERE enabled = 1 AND auto_watch = 1
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list watched configs: %w", err)
	}
	defer rows.Close()

	var configs []*TransferConfig
	for rows.Next() {
		c, err := scanTransferConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

func (s *TransferConfigStore) Update(ctx context.Context, c *TransferConfig) (*TransferConfig, error) {
	if c == nil {
		return nil, errors.New("transfer config is nil")
	}
	if !c.Operation.IsValid() {
		return nil, fmt.Errorf("invalid operation: %s", c.Operation)
	}

	var scrapingID sql.NullInt64
	if c.ScrapingID != nil {
		scrapingID = sql.NullInt64{Int64: *c.ScrapingID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transfer_configs SET
			name = ?, description = ?, content_type = ?, operation = ?,
			source_folder = ?, output_folder = ?, failed_folder = ?,
			escape_folders = ?, escape_literals = ?, escape_size = ?,
			auto_watch = ?, clean_others = ?, optimize_name = ?, enabled = ?,
			sc_enabled = ?, sc_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		c.Name, c.Description, c.ContentType, c.Operation,
		c.SourceFolder, c.OutputFolder, c.FailedFolder,
		c.EscapeFolders, c.EscapeLiterals, c.EscapeSize,
		boolToInt(c.AutoWatch), boolToInt(c.CleanOthers), boolToInt(c.OptimizeName), boolToInt(c.Enabled),
		boolToInt(c.ScrapeEnabled), scrapingID,
		c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update transfer config: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrConfigNotFound
	}

	return s.Get(ctx, c.ID)
}

func (s *TransferConfigStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM transfer_configs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer config: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrConfigNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransferConfig(row rowScanner) (*TransferConfig, error) {
	var c TransferConfig
	var autoWatch, cleanOthers, optimizeName, enabled, scEnabled int
	var scrapingID sql.NullInt64

	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.ContentType, &c.Operation,
		&c.SourceFolder, &c.OutputFolder, &c.FailedFolder,
		&c.EscapeFolders, &c.EscapeLiterals, &c.EscapeSize,
		&autoWatch, &cleanOthers, &optimizeName, &enabled,
		&scEnabled, &scrapingID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.AutoWatch = autoWatch == 1
	c.CleanOthers = cleanOthers == 1
	c.OptimizeName = optimizeName == 1
	c.Enabled = enabled == 1
	c.ScrapeEnabled = scEnabled == 1
	if scrapingID.Valid {
		c.ScrapingID = &scrapingID.Int64
	}

	return &c, nil
}
