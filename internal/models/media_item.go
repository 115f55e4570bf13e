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

// MediaItem mirrors a library entry known to the external media-sync
// collaborator. The core only touches these rows during duplicate purges;
// SeriesID is stored but never traversed.
type MediaItem struct {
	ID            int64     `json:"id"`
	MediaType     string    `json:"mediaType"`
	Title         string    `json:"title"`
	Number        string    `json:"number"`
	IMDBID        string    `json:"imdbId"`
	TMDBID        string    `json:"tmdbId"`
	SeriesID      *int64    `json:"seriesId,omitempty"`
	SeasonNumber  *int      `json:"seasonNumber,omitempty"`
	EpisodeNumber *int      `json:"episodeNumber,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type MediaItemStore struct {
	db dbinterface.Querier
}

func NewMediaItemStore(db dbinterface.Querier) *MediaItemStore {
	return &MediaItemStore{db: db}
}

// ListByNumber returns items for a number, newest update first.
func (s *MediaItemStore) ListByNumber(ctx context.Context, number string) ([]*MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, media_type, title, number, imdb_id, tmdb_id,
			series_id, season_number, episode_number, created_at, updated_at
		FROM media_items
		WHERE number = ?
		ORDER BY updated_at DESC, id DESC
	`, number)
	if err != nil {
		return nil, fmt.Errorf("failed to list media items: %w", err)
	}
	defer rows.Close()

	var items []*MediaItem
	for rows.Next() {
		var m MediaItem
		var seriesID sql.NullInt64
		var season, episode sql.NullInt64
		err := rows.Scan(
			&m.ID, &m.MediaType, &m.Title, &m.Number, &m.IMDBID, &m.TMDBID,
			&seriesID, &season, &episode, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media item: %w", err)
		}
		if seriesID.Valid {
			m.SeriesID = &seriesID.Int64
		}
		if season.Valid {
			v := int(season.Int64)
			m.SeasonNumber = &v
		}
		if episode.Valid {
			v := int(episode.Int64)
			m.EpisodeNumber = &v
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

// Delete removes a media item; watch history rows cascade with it.
func (s *MediaItemStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM media_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete media item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return errors.New("media item not found")
	}
	return nil
}
