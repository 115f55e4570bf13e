// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/curator/internal/downloader"
	"github.com/autobrr/curator/internal/models"
	"github.com/autobrr/curator/internal/testdb"
)

type stubTorrents struct {
	torrents []downloader.Torrent
	deleted  []string
}

func (s *stubTorrents) FindByPath(_ context.Context, _ string) ([]downloader.Torrent, error) {
	return s.torrents, nil
}

func (s *stubTorrents) Delete(_ context.Context, hash string, _ bool) error {
	s.deleted = append(s.deleted, hash)
	return nil
}

type fixture struct {
	svc        *Service
	records    *models.TransferRecordStore
	extras     *models.ExtraInfoStore
	metadata   *models.MetadataStore
	mediaItems *models.MediaItemStore
	torrents   *stubTorrents
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	f := &fixture{
		records:    models.NewTransferRecordStore(db),
		extras:     models.NewExtraInfoStore(db),
		metadata:   models.NewMetadataStore(db),
		mediaItems: models.NewMediaItemStore(db),
		torrents:   &stubTorrents{},
	}
	f.svc = New(f.records, f.extras, f.metadata, f.mediaItems, f.torrents, 7)
	return f
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func placedRecord(t *testing.T, f *fixture, src, out string) *models.TransferRecord {
	t.Helper()
	srcPath := filepath.Join(src, "Some.Movie", "Some.Movie.mkv")
	destPath := filepath.Join(out, "Some.Movie", "Some.Movie.mkv")
	writeFile(t, srcPath)
	writeFile(t, destPath)

	record, err := f.records.GetOrCreate(context.Background(), 1, "Some.Movie", srcPath, src)
	require.NoError(t, err)
	record.DestPath = destPath
	require.NoError(t, f.records.Update(context.Background(), record))
	return record
}

func TestDeleteRecordSoft(t *testing.T) {
	f := setup(t)
	src, out := t.TempDir(), t.TempDir()
	record := placedRecord(t, f, src, out)

	require.NoError(t, f.svc.DeleteRecord(context.Background(), record.ID, false))

	// Destination gone, source preserved, row kept with a dead time.
	assert.NoFileExists(t, record.DestPath)
	assert.FileExists(t, record.SrcPath)

	kept, err := f.records.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.True(t, kept.Deleted)
	require.NotNil(t, kept.DeadTime)
	assert.True(t, kept.DeadTime.After(time.Now()))
	assert.Empty(t, kept.DestPath)
}

func TestDeleteRecordForce(t *testing.T) {
	f := setup(t)
	src, out := t.TempDir(), t.TempDir()
	record := placedRecord(t, f, src, out)

	_, err := f.extras.Upsert(context.Background(), &models.ExtraInfo{FilePath: record.SrcPath, Number: "X"})
	require.NoError(t, err)

	// The torrent payload still holds a video, so it must survive.
	f.torrents.torrents = []downloader.Torrent{{
		Hash:        "aa11",
		Name:        "Some.Movie",
		DownloadDir: src,
	}}

	require.NoError(t, f.svc.DeleteRecord(context.Background(), record.ID, true))

	assert.NoFileExists(t, record.DestPath)
	assert.NoFileExists(t, record.SrcPath)

	_, err = f.records.Get(context.Background(), record.ID)
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
	_, err = f.extras.GetByPath(context.Background(), record.SrcPath)
	assert.ErrorIs(t, err, models.ErrRecordNotFound)

	// Source tree emptied of video, so the second pass deletes the torrent.
	assert.Equal(t, []string{"aa11"}, f.torrents.deleted)
}

func TestDeleteRecordForceKeepsBusyTorrent(t *testing.T) {
	f := setup(t)
	src, out := t.TempDir(), t.TempDir()
	record := placedRecord(t, f, src, out)

	// A sibling video in the same torrent payload blocks deletion.
	writeFile(t, filepath.Join(src, "Some.Movie", "Some.Movie.Part2.mkv"))
	f.torrents.torrents = []downloader.Torrent{{
		Hash:        "bb22",
		Name:        "Some.Movie",
		DownloadDir: src,
	}}

	require.NoError(t, f.svc.DeleteRecord(context.Background(), record.ID, true))
	assert.Empty(t, f.torrents.deleted)
}

func TestCollectExpired(t *testing.T) {
	f := setup(t)
	src, out := t.TempDir(), t.TempDir()
	record := placedRecord(t, f, src, out)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.records.SoftDelete(context.Background(), record.ID, past))

	removed, err := f.svc.CollectExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.records.Get(context.Background(), record.ID)
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
	assert.NoFileExists(t, record.SrcPath)
}

func TestPurgeDuplicates(t *testing.T) {
	f := setup(t)

	older, err := f.metadata.Create(context.Background(), &models.Metadata{Number: "ABC-123", Title: "old"})
	require.NoError(t, err)
	newest, err := f.metadata.Create(context.Background(), &models.Metadata{Number: "ABC-123", Title: "new"})
	require.NoError(t, err)

	purged, err := f.svc.PurgeDuplicates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	rows, err := f.metadata.ListByNumber(context.Background(), "ABC-123")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, newest.ID, rows[0].ID)
	_ = older
}

func TestRenameTopFolder(t *testing.T) {
	f := setup(t)
	src, out := t.TempDir(), t.TempDir()

	record, err := f.records.GetOrCreate(context.Background(), 1, "a", filepath.Join(src, "Old.Name", "a.mkv"), src)
	require.NoError(t, err)
	record.TopFolder = "Old.Name"
	require.NoError(t, f.records.Update(context.Background(), record))
	writeFile(t, filepath.Join(out, "Old.Name", "a.mkv"))

	n, err := f.svc.RenameTopFolder(context.Background(), src, out, "Old.Name", "New.Name")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.DirExists(t, filepath.Join(out, "New.Name"))
	assert.NoDirExists(t, filepath.Join(out, "Old.Name"))

	updated, err := f.records.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, "New.Name", updated.TopFolder)
}
