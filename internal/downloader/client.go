// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package downloader wraps the qBittorrent API for the cleanup handshake:
// locating the torrent that produced a source path and removing it together
// with its data once no video files remain.
package downloader

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Torrent is the minimal view of a client-side entry the cleanup manager
// needs.
type Torrent struct {
	Hash        string
	Name        string
	DownloadDir string
}

type Client struct {
	qb *qbt.Client
	// mappings translate the torrent client's container paths into our
	// namespace, "container -> host".
	mappings map[string]string
}

func NewClient(host, username, password string, mappings map[string]string) (*Client, error) {
	qbClient := qbt.NewClient(qbt.Config{
		Host:     host,
		Username: username,
		Password: password,
		Timeout:  30,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := qbClient.LoginCtx(ctx); err != nil {
		return nil, errors.Wrap(err, "connect to qbittorrent")
	}

	log.Debug().Str("host", host).Msg("[DOWNLOADER] qbittorrent client connected")
	return &Client{qb: qbClient, mappings: mappings}, nil
}

// FindByPath returns torrents whose name matches the final segment of the
// path, walking up to three ancestors when the direct basename has no match.
// A multi-file torrent's name is its folder, so the source file's parent
// chain is where the match lives.
func (c *Client) FindByPath(ctx context.Context, path string) ([]Torrent, error) {
	torrents, err := c.qb.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "list torrents")
	}

	byName := make(map[string][]Torrent, len(torrents))
	for _, t := range torrents {
		byName[t.Name] = append(byName[t.Name], Torrent{
			Hash:        t.Hash,
			Name:        t.Name,
			DownloadDir: c.MapPath(t.SavePath, false),
		})
	}

	candidate := path
	for i := 0; i < 3 && candidate != "" && candidate != "/" && candidate != "."; i++ {
		name := filepath.Base(candidate)
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if found := byName[name]; len(found) > 0 {
			return found, nil
		}
		if i == 0 && stem != name {
			// Single-file torrents are named with their extension intact,
			// but some clients report the stem.
			if found := byName[stem]; len(found) > 0 {
				return found, nil
			}
		}
		candidate = filepath.Dir(candidate)
	}
	return nil, nil
}

// Delete removes the torrent and, when deleteData is set, its payload.
func (c *Client) Delete(ctx context.Context, hash string, deleteData bool) error {
	if err := c.qb.DeleteTorrentsCtx(ctx, []string{hash}, deleteData); err != nil {
		return errors.Wrapf(err, "delete torrent %s", hash)
	}
	log.Info().Str("hash", hash).Bool("data", deleteData).Msg("[DOWNLOADER] torrent deleted")
	return nil
}

// MapPath translates between the torrent client's path namespace and ours.
// Forward (inverse=false) maps container paths to host paths.
func (c *Client) MapPath(p string, inverse bool) string {
	for container, host := range c.mappings {
		from, to := container, host
		if inverse {
			from, to = host, container
		}
		if strings.HasPrefix(p, from) {
			return filepath.Join(to, strings.TrimPrefix(p, from))
		}
	}
	return p
}
