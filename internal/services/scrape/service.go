// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scrape resolves metadata for scrape-enabled pipelines: cache
// first, network second, user overrides always. The resolved metadata
// drives destination naming and the NFO/artwork sidecars.
package scrape

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/autobrr/curator/internal/mediafs"
	"github.com/autobrr/curator/internal/models"
	"github.com/autobrr/curator/internal/parser"
	"github.com/autobrr/curator/internal/services/transfer"
)

// multiActorLabel replaces the actor field in naming rules when the joined
// actor list is too long to be a folder name.
const multiActorLabel = "多人作品"

// ScrapeRequest is one lookup against the external sites.
type ScrapeRequest struct {
	Number          string
	Sites           string
	SpecifiedSource string
	SpecifiedURL    string
}

// Scraper is the external-site collaborator. Implementations return
// (nil, nil) when no site produced a usable result; transient failures are
// returned as errors and retried by the dispatcher.
type Scraper interface {
	Scrape(ctx context.Context, req ScrapeRequest) (*models.Metadata, error)
}

// Service implements transfer.Resolver on top of the metadata cache and the
// external scraper.
type Service struct {
	metadata *models.MetadataStore
	extras   *models.ExtraInfoStore
	configs  *models.ScrapingConfigStore
	scraper  Scraper
	artwork  *ArtworkCache

	sf singleflight.Group

	// resolved carries the Plan outcome per source path so WriteSidecars
	// does not resolve twice. Entries live for the duration of one group.
	mu       sync.Mutex
	resolved map[string]*resolution
}

type resolution struct {
	meta *models.Metadata
	crop bool
}

func New(metadata *models.MetadataStore, extras *models.ExtraInfoStore, configs *models.ScrapingConfigStore, scraper Scraper, artwork *ArtworkCache) *Service {
	return &Service{
		metadata: metadata,
		extras:   extras,
		configs:  configs,
		scraper:  scraper,
		artwork:  artwork,
		resolved: make(map[string]*resolution),
	}
}

// Plan resolves metadata for one source file and renders the naming rules
// into a destination plan. A nil plan with a nil error means the scrape came
// back empty; the caller records the failure and moves on.
func (s *Service) Plan(ctx context.Context, srcPath string, scrapingID int64) (*transfer.NamePlan, error) {
	conf, err := s.config(ctx, scrapingID)
	if err != nil {
		return nil, err
	}

	extra, err := s.extraInfo(ctx, srcPath)
	if err != nil {
		return nil, err
	}

	meta, err := s.resolve(ctx, conf, extra)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		log.Warn().Str("number", extra.Number).Str("path", srcPath).Msg("[SCRAPE] no metadata found")
		return nil, nil
	}

	// User-supplied tags survive rescrapes.
	view := *meta
	view.Tag = mergeTags(meta.Tag, extra.Tag)

	folder, filename, err := s.applyRules(conf, &view)
	if err != nil {
		return nil, err
	}
	if extra.PartNumber > 0 {
		filename += fmt.Sprintf("-CD%d", extra.PartNumber)
	}

	s.mu.Lock()
	s.resolved[srcPath] = &resolution{meta: &view, crop: extra.Crop}
	s.mu.Unlock()

	log.Debug().Str("number", view.Number).Str("folder", folder).Str("filename", filename).Msg("[SCRAPE] plan ready")
	return &transfer.NamePlan{
		Folder:   folder,
		Filename: filename,
		PartOne:  extra.PartNumber <= 1,
	}, nil
}

// WriteSidecars writes the NFO and artwork next to an already placed first
// part. Plan must have run for the same source path.
func (s *Service) WriteSidecars(ctx context.Context, srcPath, destFolder, basename string) error {
	s.mu.Lock()
	res := s.resolved[srcPath]
	delete(s.resolved, srcPath)
	s.mu.Unlock()

	if res == nil {
		return errors.Errorf("no resolved metadata for %s", srcPath)
	}

	if s.artwork != nil && res.meta.Cover != "" {
		cached, err := s.artwork.Fetch(ctx, res.meta.Cover)
		if err != nil {
			log.Warn().Err(err).Str("url", res.meta.Cover).Msg("[SCRAPE] cover fetch failed")
		} else if err := writeArtwork(cached, destFolder, basename, res.crop); err != nil {
			log.Warn().Err(err).Str("path", destFolder).Msg("[SCRAPE] artwork write failed")
		}
	}

	nfoPath := filepath.Join(destFolder, basename+".nfo")
	if err := writeNFO(nfoPath, res.meta, basename); err != nil {
		return errors.Wrap(err, "write nfo")
	}

	log.Info().Str("path", nfoPath).Msg("[SCRAPE] sidecars written")
	return nil
}

func (s *Service) config(ctx context.Context, scrapingID int64) (*models.ScrapingConfig, error) {
	if scrapingID > 0 {
		conf, err := s.configs.Get(ctx, scrapingID)
		if err == nil {
			return conf, nil
		}
		if !errors.Is(err, models.ErrConfigNotFound) {
			return nil, err
		}
		log.Warn().Int64("id", scrapingID).Msg("[SCRAPE] scraping config missing, using defaults")
	}
	return defaultScrapingConfig(), nil
}

func defaultScrapingConfig() *models.ScrapingConfig {
	return &models.ScrapingConfig{
		LocationRule: "actor+'/'+number+' '+title",
		NamingRule:   "number+' '+title",
		MaxTitleLen:  50,
		SaveMetadata: true,
	}
}

// extraInfo loads the per-file overrides, seeding a fresh row from the
// number parser on first contact.
func (s *Service) extraInfo(ctx context.Context, srcPath string) (*models.ExtraInfo, error) {
	extra, err := s.extras.GetByPath(ctx, srcPath)
	if err == nil {
		return extra, nil
	}
	if !errors.Is(err, models.ErrRecordNotFound) {
		return nil, err
	}

	info := parser.Parse(srcPath)
	seeded := &models.ExtraInfo{
		FilePath:   srcPath,
		Number:     info.Number,
		Tag:        seedTags(info),
		PartNumber: partNumber(info),
	}
	created, err := s.extras.Upsert(ctx, seeded)
	if err != nil {
		return nil, errors.Wrap(err, "seed extra info")
	}
	log.Debug().Str("number", created.Number).Str("path", srcPath).Msg("[SCRAPE] extra info seeded")
	return created, nil
}

// resolve returns cached metadata when present, otherwise asks the external
// scraper. Concurrent lookups for the same number collapse into one call.
func (s *Service) resolve(ctx context.Context, conf *models.ScrapingConfig, extra *models.ExtraInfo) (*models.Metadata, error) {
	meta, err := s.metadata.Find(ctx, extra.Number, extra.SpecifiedSource, extra.SpecifiedURL)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, models.ErrMetadataNotFound) {
		return nil, err
	}

	if s.scraper == nil {
		return nil, errors.New("no scraper configured")
	}

	key := extra.Number + "|" + extra.SpecifiedSource + "|" + extra.SpecifiedURL
	v, err, _ := s.sf.Do(key, func() (any, error) {
		scraped, err := s.scraper.Scrape(ctx, ScrapeRequest{
			Number:          extra.Number,
			Sites:           conf.ScrapingSites,
			SpecifiedSource: extra.SpecifiedSource,
			SpecifiedURL:    extra.SpecifiedURL,
		})
		if err != nil {
			return nil, err
		}
		if scraped == nil || scraped.Title == "" {
			return (*models.Metadata)(nil), nil
		}

		scraped.Number = strings.ToUpper(scraped.Number)
		if conf.SaveMetadata {
			saved, err := s.metadata.Create(ctx, scraped)
			if err != nil {
				return nil, errors.Wrap(err, "save metadata")
			}
			return saved, nil
		}
		return scraped, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scrape %s", extra.Number)
	}
	return v.(*models.Metadata), nil
}

// applyRules renders the location and naming rules against the metadata.
// An overlong actor list becomes the multi-performer label, and an overlong
// title is truncated, before either rule runs.
func (s *Service) applyRules(conf *models.ScrapingConfig, meta *models.Metadata) (folder, filename string, err error) {
	idents, err := ruleIdentifiers(conf.LocationRule)
	if err != nil {
		return "", "", err
	}
	nameIdents, err := ruleIdentifiers(conf.NamingRule)
	if err != nil {
		return "", "", err
	}
	for k := range nameIdents {
		idents[k] = true
	}

	env := ruleEnv(meta)
	if idents["actor"] && utf8.RuneCountInString(meta.Actor) > conf.MaxTitleLen {
		env["actor"] = multiActorLabel
	}
	if idents["title"] && utf8.RuneCountInString(meta.Title) > conf.MaxTitleLen {
		env["title"] = truncateRunes(meta.Title, conf.MaxTitleLen)
	}

	folder, err = evalRule(conf.LocationRule, env)
	if err != nil {
		return "", "", err
	}
	filename, err = evalRule(conf.NamingRule, env)
	if err != nil {
		return "", "", err
	}
	return sanitizeFolder(folder), mediafs.SanitizePath(filename), nil
}

func ruleEnv(meta *models.Metadata) map[string]any {
	return map[string]any{
		"number":   meta.Number,
		"title":    meta.Title,
		"actor":    meta.Actor,
		"studio":   meta.Studio,
		"director": meta.Director,
		"release":  meta.Release,
		"year":     meta.Year,
		"runtime":  meta.Runtime,
		"genre":    meta.Genre,
		"rating":   meta.Rating,
		"language": meta.Language,
		"country":  meta.Country,
		"outline":  meta.Outline,
		"series":   meta.Series,
		"label":    meta.Label,
		"site":     meta.Site,
	}
}

// sanitizeFolder cleans each path segment while keeping the rule's nesting.
func sanitizeFolder(folder string) string {
	segments := strings.Split(folder, "/")
	for i, seg := range segments {
		segments[i] = mediafs.SanitizePath(seg)
	}
	return strings.Join(segments, "/")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// seedTags derives the initial tag set from the parsed filename markers.
func seedTags(info *parser.NumInfo) string {
	var tags []string
	if info.Chs {
		tags = append(tags, "中文字幕")
	}
	if info.Leak {
		tags = append(tags, "流出")
	}
	if info.Uncensored {
		tags = append(tags, "無碼")
	}
	if info.Hack {
		tags = append(tags, "破解")
	}
	return strings.Join(tags, ",")
}

var cdPrefix = "-CD"

// partNumber extracts the numeric part index from a parsed multipart suffix.
func partNumber(info *parser.NumInfo) int {
	if !info.Multipart {
		return 0
	}
	digits := strings.TrimPrefix(strings.ToUpper(info.Part), cdPrefix)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// mergeTags unions two comma-separated tag lists, keeping first-seen order.
func mergeTags(a, b string) string {
	seen := make(map[string]bool)
	var out []string
	for _, csv := range []string{a, b} {
		for _, tag := range strings.Split(csv, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return strings.Join(out, ",")
}
