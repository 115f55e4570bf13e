// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/curator/internal/models"
	"github.com/autobrr/curator/internal/testdb"
)

func TestTransferRecordGetOrCreate(t *testing.T) {
	db := testdb.Open(t)
	store := models.NewTransferRecordStore(db)
	ctx := context.Background()

	rec, err := store.GetOrCreate(ctx, 1, "movie.mkv", "/src/movie.mkv", "/src")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ConfigID)
	assert.Equal(t, "/src/movie.mkv", rec.SrcPath)
	assert.Nil(t, rec.Success)
	assert.False(t, rec.Deleted)

	// Mark success, then resight under another config: success resets to
	// pending and the owning config changes.
	require.NoError(t, store.SetSuccess(ctx, rec.ID, true))

	again, err := store.GetOrCreate(ctx, 2, "movie.mkv", "/src/movie.mkv", "/src")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID, "srcpath must stay unique")
	assert.Equal(t, int64(2), again.ConfigID)
	assert.Nil(t, again.Success)
}

func TestTransferRecordSoftDelete(t *testing.T) {
	db := testdb.Open(t)
	store := models.NewTransferRecordStore(db)
	ctx := context.Background()

	rec, err := store.GetOrCreate(ctx, 1, "x.mkv", "/s/x.mkv", "/s")
	require.NoError(t, err)

	rec.TopFolder = "X"
	rec.DestPath = "/o/X/x.mkv"
	rec.IsEpisode = true
	rec.Season = 2
	rec.Episode = 5
	success := true
	rec.Success = &success
	require.NoError(t, store.Update(ctx, rec))

	deadtime := time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, store.SoftDelete(ctx, rec.ID, deadtime))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, "", got.TopFolder)
	assert.Equal(t, "", got.DestPath)
	assert.False(t, got.IsEpisode)
	assert.Equal(t, -1, got.Season)
	require.NotNil(t, got.DeadTime)
	assert.WithinDuration(t, deadtime, *got.DeadTime, time.Second)
	assert.Equal(t, "/s/x.mkv", got.SrcPath, "soft delete keeps the row")
}

func TestTransferRecordDestPathTransitions(t *testing.T) {
	db := testdb.Open(t)
	store := models.NewTransferRecordStore(db)
	ctx := context.Background()

	rec, err := store.GetOrCreate(ctx, 1, "a.mkv", "/s/a.mkv", "/s")
	require.NoError(t, err)
	rec.DestPath = "/o/A/a.mkv"
	require.NoError(t, store.Update(ctx, rec))

	n, err := store.MarkDeletedByDestPath(ctx, "/o/A/a.mkv", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.NotNil(t, got.DeadTime)

	// Target reappears: deletion state clears, including deadtime.
	n, err = store.ReviveByDestPath(ctx, "/o/A/a.mkv")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err = store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.Deleted)
	assert.Nil(t, got.DeadTime)
}

func TestTransferRecordMarkSourceDeleted(t *testing.T) {
	db := testdb.Open(t)
	store := models.NewTransferRecordStore(db)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, 1, "a.mkv", "/s/show/a.mkv", "/s")
	require.NoError(t, err)
	_, err = store.GetOrCreate(ctx, 1, "b.mkv", "/s/show/b.mkv", "/s")
	require.NoError(t, err)
	other, err := store.GetOrCreate(ctx, 1, "c.mkv", "/s/showdown/c.mkv", "/s")
	require.NoError(t, err)

	n, err := store.MarkSourceDeleted(ctx, "/s/show")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "prefix match must respect path boundaries")

	got, err := store.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, got.SrcDeleted)
}

func TestTransferRecordListExpired(t *testing.T) {
	db := testdb.Open(t)
	store := models.NewTransferRecordStore(db)
	ctx := context.Background()

	expired, err := store.GetOrCreate(ctx, 1, "old.mkv", "/s/old.mkv", "/s")
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	expired.Deleted = true
	expired.DeadTime = &past
	require.NoError(t, store.Update(ctx, expired))

	pending, err := store.GetOrCreate(ctx, 1, "new.mkv", "/s/new.mkv", "/s")
	require.NoError(t, err)
	future := time.Now().Add(time.Hour)
	pending.Deleted = true
	pending.DeadTime = &future
	require.NoError(t, store.Update(ctx, pending))

	gone, err := store.GetOrCreate(ctx, 1, "gone.mkv", "/s/gone.mkv", "/s")
	require.NoError(t, err)
	gone.SrcDeleted = true
	require.NoError(t, store.Update(ctx, gone))

	records, err := store.ListExpired(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, records, 2)

	paths := []string{records[0].SrcPath, records[1].SrcPath}
	assert.ElementsMatch(t, []string{"/s/old.mkv", "/s/gone.mkv"}, paths)
}

func TestTransferRecordRenameTopFolder(t *testing.T) {
	db := testdb.Open(t)
	store := models.NewTransferRecordStore(db)
	ctx := context.Background()

	rec, err := store.GetOrCreate(ctx, 1, "e1.mkv", "/s/show/e1.mkv", "/s")
	require.NoError(t, err)
	rec.TopFolder = "Long.Folder.Name"
	require.NoError(t, store.Update(ctx, rec))

	n, err := store.RenameTopFolder(ctx, "/s", "Long.Folder.Name", "Short")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Short", got.TopFolder)
}

func TestTransferRecordSearch(t *testing.T) {
	db := testdb.Open(t)
	store := models.NewTransferRecordStore(db)
	ctx := context.Background()

	for _, p := range []string{"/s/alpha.mkv", "/s/beta.mkv", "/s/alphabet.mkv"} {
		_, err := store.GetOrCreate(ctx, 1, p[3:], p, "/s")
		require.NoError(t, err)
	}

	records, total, err := store.Search(ctx, "alpha", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, records, 2)
}
