// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package nfoimport ingests existing movie NFO files into the metadata
// cache, so libraries organized elsewhere resolve without rescraping.
package nfoimport

import (
	"context"
	"encoding/xml"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/curator/internal/models"
)

type nfoActor struct {
	Name string `xml:"name"`
}

// nfoMovie mirrors the fields our own NFO writer emits plus the common
// aliases other tools use.
type nfoMovie struct {
	Title    string     `xml:"title"`
	Num      string     `xml:"num"`
	Studio   string     `xml:"studio"`
	Year     string     `xml:"year"`
	Runtime  string     `xml:"runtime"`
	Director string     `xml:"director"`
	Outline  string     `xml:"outline"`
	Release  string     `xml:"release"`
	Series   string     `xml:"set"`
	Label    string     `xml:"label"`
	Cover    string     `xml:"cover"`
	Trailer  string     `xml:"trailer"`
	Website  string     `xml:"website"`
	Actors   []nfoActor `xml:"actor"`
	Tags     []string   `xml:"tag"`
	Genres   []string   `xml:"genre"`
}

type Service struct {
	metadata *models.MetadataStore
}

func New(metadata *models.MetadataStore) *Service {
	return &Service{metadata: metadata}
}

// Import walks the folder for .nfo files and inserts a metadata row per
// file. Numbers already cached are skipped unless force is set. Returns the
// number of rows imported; unreadable files are logged and skipped.
func (s *Service) Import(ctx context.Context, folder string, force bool) (int, error) {
	imported := 0

	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".nfo") {
			return nil
		}

		meta, err := decodeFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("[NFOIMPORT] skipping unreadable nfo")
			return nil
		}

		if !force {
			existing, err := s.metadata.ListByNumber(ctx, meta.Number)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				log.Debug().Str("number", meta.Number).Msg("[NFOIMPORT] already cached, skipping")
				return nil
			}
		}

		if _, err := s.metadata.Create(ctx, meta); err != nil {
			return errors.Wrapf(err, "import %s", path)
		}
		imported++
		return nil
	})
	if err != nil {
		return imported, errors.Wrapf(err, "walk %s", folder)
	}

	log.Info().Str("folder", folder).Int("imported", imported).Msg("[NFOIMPORT] done")
	return imported, nil
}

func decodeFile(path string) (*models.Metadata, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var movie nfoMovie
	if err := xml.Unmarshal(body, &movie); err != nil {
		return nil, err
	}

	number := movie.Num
	outline := movie.Outline
	// Our writer packs the number into the outline as "number#outline".
	if number == "" {
		if i := strings.Index(outline, "#"); i > 0 {
			number = outline[:i]
		}
	}
	if i := strings.Index(outline, "#"); i >= 0 {
		outline = outline[i+1:]
	}
	if number == "" {
		return nil, errors.Errorf("no number in %s", path)
	}

	var actors []string
	for _, a := range movie.Actors {
		if a.Name != "" {
			actors = append(actors, a.Name)
		}
	}

	return &models.Metadata{
		Number:   strings.ToUpper(number),
		Title:    movie.Title,
		Studio:   movie.Studio,
		Year:     movie.Year,
		Runtime:  movie.Runtime,
		Director: movie.Director,
		Outline:  outline,
		Release:  movie.Release,
		Series:   movie.Series,
		Label:    movie.Label,
		Cover:    movie.Cover,
		Trailer:  movie.Trailer,
		DetailURL: movie.Website,
		Actor:    strings.Join(actors, ","),
		Tag:      strings.Join(movie.Tags, ","),
		Genre:    strings.Join(movie.Genres, ","),
		Site:     "import",
	}, nil
}
