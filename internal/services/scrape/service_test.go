// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scrape

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/curator/internal/models"
	"github.com/autobrr/curator/internal/testdb"
)

type stubScraper struct {
	meta  *models.Metadata
	err   error
	calls int
}

func (s *stubScraper) Scrape(_ context.Context, _ ScrapeRequest) (*models.Metadata, error) {
	s.calls++
	return s.meta, s.err
}

type fixture struct {
	svc      *Service
	metadata *models.MetadataStore
	extras   *models.ExtraInfoStore
	configs  *models.ScrapingConfigStore
}

func setup(t *testing.T, scraper Scraper) *fixture {
	t.Helper()
	db := testdb.Open(t)
	f := &fixture{
		metadata: models.NewMetadataStore(db),
		extras:   models.NewExtraInfoStore(db),
		configs:  models.NewScrapingConfigStore(db),
	}
	f.svc = New(f.metadata, f.extras, f.configs, scraper, nil)
	return f
}

func TestPlanScrapeHit(t *testing.T) {
	scraper := &stubScraper{meta: &models.Metadata{
		Number: "abc-123",
		Title:  "Example",
		Actor:  "Alice",
		Site:   "javdb",
	}}
	f := setup(t, scraper)

	plan, err := f.svc.Plan(context.Background(), "/s/abc-123.mp4", 0)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, "Alice/ABC-123 Example", plan.Folder)
	assert.Equal(t, "ABC-123 Example", plan.Filename)
	assert.True(t, plan.PartOne)
	assert.Equal(t, 1, scraper.calls)

	// save_metadata default persists the normalized row.
	saved, err := f.metadata.Find(context.Background(), "ABC-123", "", "")
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", saved.Number)

	// The seeded override row exists for later user edits.
	extra, err := f.extras.GetByPath(context.Background(), "/s/abc-123.mp4")
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", extra.Number)
}

func TestPlanCacheFirst(t *testing.T) {
	scraper := &stubScraper{err: assert.AnError}
	f := setup(t, scraper)

	_, err := f.metadata.Create(context.Background(), &models.Metadata{
		Number: "ABC-123",
		Title:  "Cached",
		Actor:  "Alice",
	})
	require.NoError(t, err)

	plan, err := f.svc.Plan(context.Background(), "/s/abc-123.mp4", 0)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, "Alice/ABC-123 Cached", plan.Folder)
	assert.Zero(t, scraper.calls)
}

func TestPlanScrapeEmpty(t *testing.T) {
	f := setup(t, &stubScraper{meta: nil})

	plan, err := f.svc.Plan(context.Background(), "/s/zzz-999.mp4", 0)
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestPlanTitleTruncated(t *testing.T) {
	scraper := &stubScraper{meta: &models.Metadata{
		Number: "ABC-123",
		Title:  "This Title Is Way Too Long For A Folder",
		Actor:  "Alice",
	}}
	f := setup(t, scraper)

	conf, err := f.configs.Create(context.Background(), &models.ScrapingConfig{
		Name:        "short titles",
		MaxTitleLen: 10,
	})
	require.NoError(t, err)

	plan, err := f.svc.Plan(context.Background(), "/s/abc-123.mp4", conf.ID)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, "ABC-123 This Title", plan.Filename)
}

func TestPlanMultiActorSubstitution(t *testing.T) {
	scraper := &stubScraper{meta: &models.Metadata{
		Number: "ABC-123",
		Title:  "Example",
		Actor:  "Alice,Bob,Carol,Dave,Erin",
	}}
	f := setup(t, scraper)

	conf, err := f.configs.Create(context.Background(), &models.ScrapingConfig{
		Name:        "crowded",
		MaxTitleLen: 10,
	})
	require.NoError(t, err)

	plan, err := f.svc.Plan(context.Background(), "/s/abc-123.mp4", conf.ID)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, "多人作品/ABC-123 Example", plan.Folder)
	// The naming rule has no actor reference, so the filename is untouched.
	assert.Equal(t, "ABC-123 Example", plan.Filename)
}

func TestPlanMultipart(t *testing.T) {
	scraper := &stubScraper{meta: &models.Metadata{
		Number: "DEF-456",
		Title:  "Example",
		Actor:  "Alice",
	}}
	f := setup(t, scraper)

	plan, err := f.svc.Plan(context.Background(), "/s/def-456-cd2.mp4", 0)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, "DEF-456 Example-CD2", plan.Filename)
	assert.False(t, plan.PartOne)
}

func TestPlanMergesUserTags(t *testing.T) {
	scraper := &stubScraper{meta: &models.Metadata{
		Number: "ABC-123",
		Title:  "Example",
		Actor:  "Alice",
		Tag:    "scraped",
	}}
	f := setup(t, scraper)

	_, err := f.extras.Upsert(context.Background(), &models.ExtraInfo{
		FilePath: "/s/abc-123.mp4",
		Number:   "ABC-123",
		Tag:      "中文字幕,scraped",
	})
	require.NoError(t, err)

	plan, err := f.svc.Plan(context.Background(), "/s/abc-123.mp4", 0)
	require.NoError(t, err)
	require.NotNil(t, plan)

	dest := t.TempDir()
	require.NoError(t, f.svc.WriteSidecars(context.Background(), "/s/abc-123.mp4", dest, plan.Filename))

	body, err := os.ReadFile(filepath.Join(dest, plan.Filename+".nfo"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "<tag>scraped</tag>")
	assert.Contains(t, string(body), "<tag>中文字幕</tag>")
}

func TestWriteSidecarsWithoutPlan(t *testing.T) {
	f := setup(t, &stubScraper{})
	err := f.svc.WriteSidecars(context.Background(), "/s/never-planned.mp4", t.TempDir(), "x")
	assert.Error(t, err)
}

func TestMergeTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a,b,c", mergeTags("a,b", "b,c"))
	assert.Equal(t, "a", mergeTags("a", ""))
	assert.Equal(t, "b", mergeTags("", " b "))
	assert.Equal(t, "", mergeTags("", ""))
}
