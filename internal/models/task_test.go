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

func TestTaskLifecycle(t *testing.T) {
	db := testdb.Open(t)
	store := models.NewTaskStore(db)
	ctx := context.Background()

	task, err := store.Create(ctx, &models.Task{
		TaskID:   "t-1",
		TaskType: "transfer:group",
		Name:     "transfer /s/movie",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	require.NoError(t, store.UpdateProgress(ctx, "t-1", 40, "transferring"))
	require.NoError(t, store.UpdateDetail(ctx, "t-1", "movie.mkv"))

	task, err = store.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusProgress, task.Status)
	assert.Equal(t, 40.0, task.Progress)
	assert.Equal(t, "transferring", task.Step)
	assert.Equal(t, "movie.mkv", task.Detail)

	require.NoError(t, store.Complete(ctx, "t-1", `{"done":1}`, models.TaskStatusSuccess))

	task, err = store.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSuccess, task.Status)
	assert.Equal(t, 100.0, task.Progress)
}

func TestTaskCompleteRejectsNonTerminal(t *testing.T) {
	db := testdb.Open(t)
	store := models.NewTaskStore(db)
	ctx := context.Background()

	_, err := store.Create(ctx, &models.Task{TaskID: "t-2", TaskType: "transfer:all"})
	require.NoError(t, err)

	err = store.Complete(ctx, "t-2", "", models.TaskStatusProgress)
	assert.Error(t, err)
}

func TestTaskFailActive(t *testing.T) {
	db := testdb.Open(t)
	store := models.NewTaskStore(db)
	ctx := context.Background()

	_, err := store.Create(ctx, &models.Task{TaskID: "p-1", TaskType: "transfer:group"})
	require.NoError(t, err)
	_, err = store.Create(ctx, &models.Task{TaskID: "p-2", TaskType: "scraping:single"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateProgress(ctx, "p-2", 10, "scraping"))
	_, err = store.Create(ctx, &models.Task{TaskID: "p-3", TaskType: "transfer:group"})
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "p-3", "", models.TaskStatusSuccess))

	n, err := store.FailActive(ctx, "cleaned on startup")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	task, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailure, task.Status)
	assert.Equal(t, "cleaned on startup", task.ErrorMessage)

	done, err := store.Get(ctx, "p-3")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSuccess, done.Status)

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestTaskDeleteOld(t *testing.T) {
	db := testdb.Open(t)
	store := models.NewTaskStore(db)
	ctx := context.Background()

	_, err := store.Create(ctx, &models.Task{TaskID: "old-1", TaskType: "transfer:group"})
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "old-1", "", models.TaskStatusSuccess))

	// Cutoff in the future removes every terminal row; active rows stay.
	_, err = store.Create(ctx, &models.Task{TaskID: "active-1", TaskType: "transfer:group"})
	require.NoError(t, err)

	n, err := store.DeleteOld(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, "active-1")
	assert.NoError(t, err)
}
