// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scrape

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/curator/internal/models"
)

// ArtworkCache downloads cover images once and keeps them under a
// content-addressed name, so rescrapes and multi-config pipelines reuse the
// same file.
type ArtworkCache struct {
	downloads *models.DownloadStore
	client    *http.Client
	dir       string
}

func NewArtworkCache(downloads *models.DownloadStore, client *http.Client, dir string) *ArtworkCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &ArtworkCache{downloads: downloads, client: client, dir: dir}
}

// Fetch returns a local path for the URL, downloading on first use. The
// cache filename is the xxhash of the URL plus the URL's extension.
func (a *ArtworkCache) Fetch(ctx context.Context, url string) (string, error) {
	if cached, err := a.downloads.GetByURL(ctx, url); err == nil {
		if _, err := os.Stat(cached.FilePath); err == nil {
			return cached.FilePath, nil
		}
		// Row without a file: the cache dir was cleaned, refetch.
	} else if !errors.Is(err, models.ErrRecordNotFound) {
		return "", err
	}

	ext := filepath.Ext(url)
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	local := filepath.Join(a.dir, fmt.Sprintf("%016x%s", xxhash.Sum64String(url), ext))

	if err := a.download(ctx, url, local); err != nil {
		return "", err
	}
	if _, err := a.downloads.Upsert(ctx, url, local); err != nil {
		return "", err
	}

	log.Debug().Str("url", url).Str("path", local).Msg("[SCRAPE] cover cached")
	return local, nil
}

func (a *ArtworkCache) download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrap(err, "create cache dir")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create cache file")
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "write cache file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// writeArtwork lays the cached cover out beside the video: full-size copies
// as fanart and thumb, and a poster that is either the cover itself or its
// right portion when the cover is a wide two-panel sleeve.
func writeArtwork(coverPath, destFolder, basename string, crop bool) error {
	fanart := filepath.Join(destFolder, basename+"-fanart.jpg")
	thumb := filepath.Join(destFolder, basename+"-thumb.jpg")
	poster := filepath.Join(destFolder, basename+"-poster.jpg")

	if err := copyImage(coverPath, fanart); err != nil {
		return err
	}
	if err := copyImage(coverPath, thumb); err != nil {
		return err
	}
	if !crop {
		return copyImage(coverPath, poster)
	}
	return cropPoster(coverPath, poster)
}

func copyImage(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, "create %s", dest)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copy to %s", dest)
	}
	return out.Close()
}

// cropPoster cuts the right panel of a two-panel sleeve cover at the DVD
// 2:3 aspect ratio.
func cropPoster(coverPath, posterPath string) error {
	in, err := os.Open(coverPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", coverPath)
	}
	img, _, err := image.Decode(in)
	in.Close()
	if err != nil {
		return errors.Wrap(err, "decode cover")
	}

	bounds := img.Bounds()
	width := bounds.Dy() * 2 / 3
	if width >= bounds.Dx() {
		return copyImage(coverPath, posterPath)
	}

	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return copyImage(coverPath, posterPath)
	}
	rect := image.Rect(bounds.Max.X-width, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)

	out, err := os.Create(posterPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", posterPath)
	}
	if err := jpeg.Encode(out, sub.SubImage(rect), &jpeg.Options{Quality: 95}); err != nil {
		out.Close()
		return errors.Wrap(err, "encode poster")
	}
	return out.Close()
}
