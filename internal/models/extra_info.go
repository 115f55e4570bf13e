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

// ExtraInfo holds per-source-file overrides for the scrape resolver. Rows
// are seeded from the number parser on first scrape and user-editable after.
type ExtraInfo struct {
	ID              int64     `json:"id"`
	FilePath        string    `json:"filepath"`
	Number          string    `json:"number"`
	Tag             string    `json:"tag"`
	PartNumber      int       `json:"partNumber"`
	SpecifiedSource string    `json:"specifiedSource"`
	SpecifiedURL    string    `json:"specifiedUrl"`
	Crop            bool      `json:"crop"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type ExtraInfoStore struct {
	db dbinterface.Querier
}

func NewExtraInfoStore(db dbinterface.Querier) *ExtraInfoStore {
	return &ExtraInfoStore{db: db}
}

func (s *ExtraInfoStore) GetByPath(ctx context.Context, filepath string) (*ExtraInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filepath, number, tag, part_number,
			specified_source, specified_url, crop, created_at, updated_at
		FROM extra_info
		WHERE filepath = ?
	`, filepath)

	e, err := scanExtraInfo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get extra info: %w", err)
	}
	return e, nil
}

// Upsert inserts or replaces the override row for a file path.
func (s *ExtraInfoStore) Upsert(ctx context.Context, e *ExtraInfo) (*ExtraInfo, error) {
	if e == nil {
		return nil, errors.New("extra info is nil")
	}
	if e.FilePath == "" {
		return nil, errors.New("filepath is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extra_info (filepath, number, tag, part_number, specified_source, specified_url, crop)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filepath) DO UPDATE SET
			number = excluded.number,
			tag = excluded.tag,
			part_number = excluded.part_number,
			specified_source = excluded.specified_source,
			specified_url = excluded.specified_url,
			crop = excluded.crop,
			updated_at = CURRENT_TIMESTAMP
	`, e.FilePath, e.Number, e.Tag, e.PartNumber, e.SpecifiedSource, e.SpecifiedURL, boolToInt(e.Crop))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert extra info: %w", err)
	}

	return s.GetByPath(ctx, e.FilePath)
}

func (s *ExtraInfoStore) DeleteByPath(ctx context.Context, filepath string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM extra_info WHERE filepath = ?", filepath); err != nil {
		return fmt.Errorf("failed to delete extra info: %w", err)
	}
	return nil
}

func scanExtraInfo(row rowScanner) (*ExtraInfo, error) {
	var e ExtraInfo
	var crop int

	err := row.Scan(
		&e.ID, &e.FilePath, &e.Number, &e.Tag, &e.PartNumber,
		&e.SpecifiedSource, &e.SpecifiedURL, &crop, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Crop = crop == 1

	return &e, nil
}
