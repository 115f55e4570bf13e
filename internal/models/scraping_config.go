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

// ScrapingConfig holds resolver and naming policy for scrape-enabled
// pipelines. The watermark/translate fields are pass-through flags consumed
// by downstream tooling.
type ScrapingConfig struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	ScrapingSites      string    `json:"scrapingSites"`
	LocationRule       string    `json:"locationRule"`
	NamingRule         string    `json:"namingRule"`
	MaxTitleLen        int       `json:"maxTitleLen"`
	SaveMetadata       bool      `json:"saveMetadata"`
	MoreStoryline      bool      `json:"moreStoryline"`
	ExtraFanartEnabled bool      `json:"extraFanartEnabled"`
	ExtraFanartFolder  string    `json:"extraFanartFolder"`
	WatermarkEnabled   bool      `json:"watermarkEnabled"`
	WatermarkSize      int       `json:"watermarkSize"`
	WatermarkLocation  int       `json:"watermarkLocation"`
	TranslateEnabled   bool      `json:"translateEnabled"`
	TranslateToSC      bool      `json:"translateToSc"`
	TranslateValues    string    `json:"translateValues"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type ScrapingConfigStore struct {
	db dbinterface.Querier
}

func NewScrapingConfigStore(db dbinterface.Querier) *ScrapingConfigStore {
	return &ScrapingConfigStore{db: db}
}

func (s *ScrapingConfigStore) Create(ctx context.Context, c *ScrapingConfig) (*ScrapingConfig, error) {
	if c == nil {
		return nil, errors.New("scraping config is nil")
	}
	if c.LocationRule == "" {
		c.LocationRule = "actor+'/'+number+' '+title"
	}
	if c.NamingRule == "" {
		c.NamingRule = "number+' '+title"
	}
	if c.MaxTitleLen <= 0 {
		c.MaxTitleLen = 50
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scraping_configs (
			name, description, scraping_sites, location_rule, naming_rule,
			max_title_len, save_metadata, morestoryline,
			extrafanart_enabled, extrafanart_folder,
			watermark_enabled, watermark_size, watermark_location,
			transalte_enabled, transalte_to_sc, transalte_values
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.Name, c.Description, c.ScrapingSites, c.LocationRule, c.NamingRule,
		c.MaxTitleLen, boolToInt(c.SaveMetadata), boolToInt(c.MoreStoryline),
		boolToInt(c.ExtraFanartEnabled), c.ExtraFanartFolder,
		boolToInt(c.WatermarkEnabled), c.WatermarkSize, c.WatermarkLocation,
		boolToInt(c.TranslateEnabled), boolToInt(c.TranslateToSC), c.TranslateValues,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert scraping config: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.Get(ctx, id)
}

func (s *ScrapingConfigStore) Get(ctx context.Context, id int64) (*ScrapingConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, scraping_sites, location_rule, naming_rule,
			max_title_len, save_metadata, morestoryline,
			extrafanart_enabled, extrafanart_folder,
			watermark_enabled, watermark_size, watermark_location,
			transalte_enabled, transalte_to_sc, transalte_values,
			created_at, updated_at
		FROM scraping_configs
		WHERE id = ?
	`, id)

	c, err := scanScrapingConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get scraping config: %w", err)
	}
	return c, nil
}

func (s *ScrapingConfigStore) List(ctx context.Context) ([]*ScrapingConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, scraping_sites, location_rule, naming_rule,
			max_title_len, save_metadata, morestoryline,
			extrafanart_enabled, extrafanart_folder,
			watermark_enabled, watermark_size, watermark_location,
			transalte_enabled, transalte_to_sc, transalte_values,
			created_at, updated_at
		FROM scraping_configs
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scraping configs: %w", err)
	}
	defer rows.Close()

	var configs []*ScrapingConfig
	for rows.Next() {
		c, err := scanScrapingConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scraping config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

func (s *ScrapingConfigStore) Update(ctx context.Context, c *ScrapingConfig) (*ScrapingConfig, error) {
	if c == nil {
		return nil, errors.New("scraping config is nil")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE scraping_configs SET
			name = ?, description = ?, scraping_sites = ?,
			location_rule = ?, naming_rule = ?, max_title_len = ?,
			save_metadata = ?, morestoryline = ?,
			extrafanart_enabled = ?, extrafanart_folder = ?,
			watermark_enabled = ?, watermark_size = ?, watermark_location = ?,
			transalte_enabled = ?, transalte_to_sc = ?, transalte_values = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		c.Name, c.Description, c.ScrapingSites,
		c.LocationRule, c.NamingRule, c.MaxTitleLen,
		boolToInt(c.SaveMetadata), boolToInt(c.MoreStoryline),
		boolToInt(c.ExtraFanartEnabled), c.ExtraFanartFolder,
		boolToInt(c.WatermarkEnabled), c.WatermarkSize, c.WatermarkLocation,
		boolToInt(c.TranslateEnabled), boolToInt(c.TranslateToSC), c.TranslateValues,
		c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update scraping config: %w", err)
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

// Delete removes a scraping config. Transfer configs referencing it keep
// their rows; the foreign key nulls sc_id.
func (s *ScrapingConfigStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM scraping_configs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete scraping config: %w", err)
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

func scanScrapingConfig(row rowScanner) (*ScrapingConfig, error) {
	var c ScrapingConfig
	var saveMetadata, moreStoryline, extraFanart, watermark, translate, translateSC int

	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.ScrapingSites, &c.LocationRule, &c.NamingRule,
		&c.MaxTitleLen, &saveMetadata, &moreStoryline,
		&extraFanart, &c.ExtraFanartFolder,
		&watermark, &c.WatermarkSize, &c.WatermarkLocation,
		&translate, &translateSC, &c.TranslateValues,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.SaveMetadata = saveMetadata == 1
	c.MoreStoryline = moreStoryline == 1
	c.ExtraFanartEnabled = extraFanart == 1
	c.WatermarkEnabled = watermark == 1
	c.TranslateEnabled = translate == 1
	c.TranslateToSC = translateSC == 1

	return &c, nil
}
