// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scrape

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/curator/internal/models"
	"github.com/autobrr/curator/internal/testdb"
)

func coverJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)), nil))
	return buf.Bytes()
}

func TestArtworkCacheFetch(t *testing.T) {
	body := coverJPEG(t, 80, 60)
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Write(body)
	}))
	defer srv.Close()

	cache := NewArtworkCache(models.NewDownloadStore(testdb.Open(t)), srv.Client(), t.TempDir())

	first, err := cache.Fetch(context.Background(), srv.URL+"/cover.jpg")
	require.NoError(t, err)
	assert.FileExists(t, first)

	// Second fetch is served from the cache row.
	second, err := cache.Fetch(context.Background(), srv.URL+"/cover.jpg")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, hits)
}

func TestWriteArtwork(t *testing.T) {
	t.Parallel()

	cover := filepath.Join(t.TempDir(), "cover.jpg")
	require.NoError(t, os.WriteFile(cover, coverJPEG(t, 800, 540), 0644))

	dest := t.TempDir()
	require.NoError(t, writeArtwork(cover, dest, "ABC-123 Example", true))

	assert.FileExists(t, filepath.Join(dest, "ABC-123 Example-fanart.jpg"))
	assert.FileExists(t, filepath.Join(dest, "ABC-123 Example-thumb.jpg"))

	// Cropped poster keeps the right panel at 2:3.
	f, err := os.Open(filepath.Join(dest, "ABC-123 Example-poster.jpg"))
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 540*2/3, cfg.Width)
	assert.Equal(t, 540, cfg.Height)
}
