// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cleanup owns the back half of a record's life: user-driven
// deletion, deferred garbage collection of expired records, duplicate
// metadata purges, and the torrent-client handshake that removes finished
// downloads once their library copies are gone.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/curator/internal/downloader"
	"github.com/autobrr/curator/internal/mediafs"
	"github.com/autobrr/curator/internal/models"
)

// TorrentClient is the downloader collaborator; nil disables the handshake.
type TorrentClient interface {
	FindByPath(ctx context.Context, path string) ([]downloader.Torrent, error)
	Delete(ctx context.Context, hash string, deleteData bool) error
}

type Service struct {
	records    *models.TransferRecordStore
	extras     *models.ExtraInfoStore
	metadata   *models.MetadataStore
	mediaItems *models.MediaItemStore
	torrents   TorrentClient

	deadTime time.Duration
}

func New(records *models.TransferRecordStore, extras *models.ExtraInfoStore, metadata *models.MetadataStore, mediaItems *models.MediaItemStore, torrents TorrentClient, deadTimeDays int) *Service {
	if deadTimeDays <= 0 {
		deadTimeDays = 7
	}
	return &Service{
		records:    records,
		extras:     extras,
		metadata:   metadata,
		mediaItems: mediaItems,
		torrents:   torrents,
		deadTime:   time.Duration(deadTimeDays) * 24 * time.Hour,
	}
}

// DeleteRecord removes a record's presence in the library. force=false is a
// soft delete: the destination file goes now, the source stays, and the row
// is kept with a dead time so the GC can finish the job if the source never
// comes back. force=true removes everything at once.
func (s *Service) DeleteRecord(ctx context.Context, id int64, force bool) error {
	record, err := s.records.Get(ctx, id)
	if err != nil {
		return err
	}

	if !force {
		s.removeDestination(record)
		if err := s.records.SoftDelete(ctx, id, time.Now().Add(s.deadTime)); err != nil {
			return err
		}
		log.Info().Int64("record", id).Str("src", record.SrcPath).Msg("[CLEANUP] record soft-deleted")
		return nil
	}

	return s.hardDelete(ctx, record)
}

// hardDelete removes the source and destination trees, the override row,
// the record, and finally the torrent when its payload holds no video
// anymore.
func (s *Service) hardDelete(ctx context.Context, record *models.TransferRecord) error {
	s.removeDestination(record)
	s.removeSource(record)

	if err := s.extras.DeleteByPath(ctx, record.SrcPath); err != nil {
		return err
	}
	if err := s.records.Delete(ctx, record.ID); err != nil && !errors.Is(err, models.ErrRecordNotFound) {
		return err
	}

	s.deleteTorrent(ctx, record.SrcPath)

	log.Info().Int64("record", record.ID).Str("src", record.SrcPath).Msg("[CLEANUP] record hard-deleted")
	return nil
}

// removeDestination drops the placed file and its same-named sidecars, then
// prunes the folder if no video remains.
func (s *Service) removeDestination(record *models.TransferRecord) {
	if record.DestPath == "" {
		return
	}
	dir := filepath.Dir(record.DestPath)
	base := strings.TrimSuffix(filepath.Base(record.DestPath), filepath.Ext(record.DestPath))
	mediafs.CleanByFilter(dir, base)
	mediafs.CleanFolderWithoutSuffix(dir, mediafs.VideoExts)
}

func (s *Service) removeSource(record *models.TransferRecord) {
	if record.SrcPath == "" || !mediafs.Exists(record.SrcPath) {
		return
	}
	dir := filepath.Dir(record.SrcPath)
	base := strings.TrimSuffix(filepath.Base(record.SrcPath), filepath.Ext(record.SrcPath))
	mediafs.CleanByFilter(dir, base)
}

// deleteTorrent removes the torrent that produced the source path, but only
// when no video file survives under its download directory. Handshake
// failures are logged, never propagated; the torrent client may simply be
// offline.
func (s *Service) deleteTorrent(ctx context.Context, srcPath string) {
	if s.torrents == nil {
		return
	}

	found, err := s.torrents.FindByPath(ctx, srcPath)
	if err != nil {
		log.Warn().Err(err).Str("path", srcPath).Msg("[CLEANUP] torrent lookup failed")
		return
	}
	for _, t := range found {
		payload := filepath.Join(t.DownloadDir, t.Name)
		if mediafs.HasVideoFiles(payload) {
			log.Debug().Str("hash", t.Hash).Msg("[CLEANUP] torrent payload still has video, keeping")
			continue
		}
		if err := s.torrents.Delete(ctx, t.Hash, true); err != nil {
			log.Warn().Err(err).Str("hash", t.Hash).Msg("[CLEANUP] torrent delete failed")
		}
	}
}

// CollectExpired hard-deletes every record whose source vanished or whose
// dead time elapsed. Returns the number of records removed.
func (s *Service) CollectExpired(ctx context.Context) (int, error) {
	expired, err := s.records.ListExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, record := range expired {
		if err := s.hardDelete(ctx, record); err != nil {
			log.Warn().Err(err).Int64("record", record.ID).Msg("[CLEANUP] expired record removal failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("[CLEANUP] expired records collected")
	}
	return removed, nil
}

// Run drives the deferred GC until the context ends.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 12 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Debug().Dur("interval", interval).Msg("[CLEANUP] gc loop started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CollectExpired(ctx); err != nil {
				log.Error().Err(err).Msg("[CLEANUP] gc pass failed")
			}
		}
	}
}

// PurgeDuplicates keeps the newest metadata row per number and deletes the
// rest, along with surplus media items and their watch history.
func (s *Service) PurgeDuplicates(ctx context.Context) (int, error) {
	numbers, err := s.metadata.ListDuplicateNumbers(ctx)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, number := range numbers {
		rows, err := s.metadata.ListByNumber(ctx, number)
		if err != nil {
			return purged, err
		}
		for _, row := range rows[1:] {
			if err := s.metadata.Delete(ctx, row.ID); err != nil {
				return purged, err
			}
			purged++
		}

		items, err := s.mediaItems.ListByNumber(ctx, number)
		if err != nil {
			return purged, err
		}
		for _, item := range items[1:] {
			if err := s.mediaItems.Delete(ctx, item.ID); err != nil {
				return purged, err
			}
		}
	}

	log.Info().Int("purged", purged).Msg("[CLEANUP] duplicate metadata purged")
	return purged, nil
}

// RenameTopFolder reconciles records after a top folder changed name,
// moving the folder on disk when it still exists.
func (s *Service) RenameTopFolder(ctx context.Context, srcfolder, outputFolder, oldTop, newTop string) (int64, error) {
	n, err := s.records.RenameTopFolder(ctx, srcfolder, oldTop, newTop)
	if err != nil {
		return 0, err
	}

	oldPath := filepath.Join(outputFolder, oldTop)
	newPath := filepath.Join(outputFolder, newTop)
	if mediafs.Exists(oldPath) && !mediafs.Exists(newPath) {
		if err := os.Rename(oldPath, newPath); err != nil {
			return n, errors.Wrapf(err, "rename %s", oldPath)
		}
	}

	log.Info().Str("old", oldTop).Str("new", newTop).Int64("records", n).Msg("[CLEANUP] top folder renamed")
	return n, nil
}
