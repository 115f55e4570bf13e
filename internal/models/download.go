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

// Download maps a remote URL to a cached local file path. Filenames are
// content-addressed by the caller, so concurrent writers converge on the
// same path.
type Download struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	FilePath  string    `json:"filepath"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DownloadStore struct {
	db dbinterface.Querier
}

func NewDownloadStore(db dbinterface.Querier) *DownloadStore {
	return &DownloadStore{db: db}
}

func (s *DownloadStore) GetByURL(ctx context.Context, url string) (*Download, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, filepath, created_at, updated_at
		FROM downloads
		WHERE url = ?
	`, url)

	var d Download
	if err := row.Scan(&d.ID, &d.URL, &d.FilePath, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get download: %w", err)
	}
	return &d, nil
}

func (s *DownloadStore) Upsert(ctx context.Context, url, filePath string) (*Download, error) {
	if url == "" {
		return nil, errors.New("url is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (url, filepath)
		VALUES (?, ?)
		ON CONFLICT(url) DO UPDATE SET
			filepath = excluded.filepath,
			updated_at = CURRENT_TIMESTAMP
	`, url, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert download: %w", err)
	}

	return s.GetByURL(ctx, url)
}

func (s *DownloadStore) Delete(ctx context.Context, url string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM downloads WHERE url = ?", url); err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	return nil
}
