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

// Metadata is one scraped result. Number is indexed but not unique: repeated
// scrapes append rows and lookups pick the newest match.
type Metadata struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	Title       string    `json:"title"`
	Studio      string    `json:"studio"`
	Release     string    `json:"release"`
	Year        string    `json:"year"`
	Runtime     string    `json:"runtime"`
	Genre       string    `json:"genre"`
	Rating      string    `json:"rating"`
	Language    string    `json:"language"`
	Country     string    `json:"country"`
	Outline     string    `json:"outline"`
	Director    string    `json:"director"`
	Actor       string    `json:"actor"`
	ActorPhoto  string    `json:"actorPhoto"`
	Cover       string    `json:"cover"`
	CoverSmall  string    `json:"coverSmall"`
	ExtraFanart string    `json:"extrafanart"`
	Trailer     string    `json:"trailer"`
	Tag         string    `json:"tag"`
	Label       string    `json:"label"`
	Series      string    `json:"series"`
	UserRating  float64   `json:"userRating"`
	UserVotes   int       `json:"userVotes"`
	DetailURL   string    `json:"detailurl"`
	Site        string    `json:"site"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type MetadataStore struct {
	db dbinterface.Querier
}

func NewMetadataStore(db dbinterface.Querier) *MetadataStore {
	return &MetadataStore{db: db}
}

const metadataColumns = `
	id, number, title, studio, release_date, year, runtime, genre, rating,
	language, country, outline, director, actor, actor_photo,
	cover, cover_small, extrafanart, trailer, tag, label, series,
	userrating, uservotes, detailurl, site, updated_at`

func (s *MetadataStore) Create(ctx context.Context, m *Metadata) (*Metadata, error) {
	if m == nil {
		return nil, errors.New("metadata is nil")
	}
	if m.Number == "" {
		return nil, errors.New("number is required")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (
			number, title, studio, release_date, year, runtime, genre, rating,
			language, country, outline, director, actor, actor_photo,
			cover, cover_small, extrafanart, trailer, tag, label, series,
			userrating, uservotes, detailurl, site
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.Number, m.Title, m.Studio, m.Release, m.Year, m.Runtime, m.Genre, m.Rating,
		m.Language, m.Country, m.Outline, m.Director, m.Actor, m.ActorPhoto,
		m.Cover, m.CoverSmall, m.ExtraFanart, m.Trailer, m.Tag, m.Label, m.Series,
		m.UserRating, m.UserVotes, m.DetailURL, m.Site,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.Get(ctx, id)
}

func (s *MetadataStore) Get(ctx context.Context, id int64) (*Metadata, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+metadataColumns+" FROM metadata WHERE id = ?", id)

	m, err := scanMetadata(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMetadataNotFound
		}
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	return m, nil
}

// Find returns the most recent metadata row matching the number, optionally
// narrowed by site or detail URL. URL takes precedence over site.
func (s *MetadataStore) Find(ctx context.Context, number, site, detailURL string) (*Metadata, error) {
	query := "SELECT" + metadataColumns + " FROM metadata WHERE number = ?"
	args := []any{number}

	switch {
	case detailURL != "":
		query += " AND detailurl = ?"
		args = append(args, detailURL)
	case site != "":
		query += " AND site = ?"
		args = append(args, site)
	}

	query += " ORDER BY id DESC LIMIT 1"

	m, err := scanMetadata(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMetadataNotFound
		}
		return nil, fmt.Errorf("failed to find metadata: %w", err)
	}
	return m, nil
}

func (s *MetadataStore) Update(ctx context.Context, m *Metadata) error {
	if m == nil {
		return errors.New("metadata is nil")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE metadata SET
			number = ?, title = ?, studio = ?, release_date = ?, year = ?,
			runtime = ?, genre = ?, rating = ?, language = ?, country = ?,
			outline = ?, director = ?, actor = ?, actor_photo = ?,
			cover = ?, cover_small = ?, extrafanart = ?, trailer = ?,
			tag = ?, label = ?, series = ?, userrating = ?, uservotes = ?,
			detailurl = ?, site = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		m.Number, m.Title, m.Studio, m.Release, m.Year,
		m.Runtime, m.Genre, m.Rating, m.Language, m.Country,
		m.Outline, m.Director, m.Actor, m.ActorPhoto,
		m.Cover, m.CoverSmall, m.ExtraFanart, m.Trailer,
		m.Tag, m.Label, m.Series, m.UserRating, m.UserVotes,
		m.DetailURL, m.Site,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrMetadataNotFound
	}
	return nil
}

func (s *MetadataStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM metadata WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrMetadataNotFound
	}
	return nil
}

// ListDuplicateNumbers returns numbers with more than one metadata row.
func (s *MetadataStore) ListDuplicateNumbers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT number FROM metadata
		GROUP BY number
		HAVING COUNT(*) > 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// ListByNumber returns all rows for a number, newest first.
func (s *MetadataStore) ListByNumber(ctx context.Context, number string) ([]*Metadata, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT"+metadataColumns+" FROM metadata WHERE number = ? ORDER BY updated_at DESC, id DESC", number)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata by number: %w", err)
	}
	defer rows.Close()

	var list []*Metadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMetadata(row rowScanner) (*Metadata, error) {
	var m Metadata
	err := row.Scan(
		&m.ID, &m.Number, &m.Title, &m.Studio, &m.Release, &m.Year,
		&m.Runtime, &m.Genre, &m.Rating, &m.Language, &m.Country,
		&m.Outline, &m.Director, &m.Actor, &m.ActorPhoto,
		&m.Cover, &m.CoverSmall, &m.ExtraFanart, &m.Trailer,
		&m.Tag, &m.Label, &m.Series, &m.UserRating, &m.UserVotes,
		&m.DetailURL, &m.Site, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
