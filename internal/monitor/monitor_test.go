// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/curator/internal/models"
	"github.com/autobrr/curator/internal/tasks"
	"github.com/autobrr/curator/internal/testdb"
)

type stubSubmitter struct {
	mu        sync.Mutex
	submitted []tasks.Args
}

func (s *stubSubmitter) Submit(_ context.Context, _ string, _ string, args tasks.Args) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, args)
	return "task-id", nil
}

func (s *stubSubmitter) all() []tasks.Args {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tasks.Args(nil), s.submitted...)
}

func TestGroupPath(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/src")
	assert.Equal(t, filepath.FromSlash("/src/Show"), groupPath(root, filepath.FromSlash("/src/Show/Season 1/e1.mkv")))
	assert.Equal(t, filepath.FromSlash("/src/loose.mkv"), groupPath(root, filepath.FromSlash("/src/loose.mkv")))
	assert.Equal(t, filepath.FromSlash("/elsewhere/x.mkv"), groupPath(root, filepath.FromSlash("/elsewhere/x.mkv")))
}

func TestPollingStability(t *testing.T) {
	root := t.TempDir()
	var mu sync.Mutex
	var events []event

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := &pollingBackend{interval: 30 * time.Millisecond}
	go b.run(ctx, root, func(e event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	// A file that keeps growing must not be emitted. Writes come faster
	// than the poll interval so no two snapshots agree while it grows.
	path := filepath.Join(root, "arriving.mkv")
	require.NoError(t, os.WriteFile(path, []byte("part"), 0644))
	grow, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	for i := 0; i < 15; i++ {
		_, err := grow.WriteString("more data")
		require.NoError(t, err)
		require.NoError(t, grow.Sync())
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	assert.Empty(t, events)
	mu.Unlock()
	require.NoError(t, grow.Close())

	// Two quiet polls later the file is stable and emitted once.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1 && events[0].op == opCreated && events[0].path == path
	}, 2*time.Second, 20*time.Millisecond)

	// Removal emits deleted.
	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2 && events[1].op == opDeleted
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPollingSharedLoopServicesAllRoots(t *testing.T) {
	rootA, rootB := t.TempDir(), t.TempDir()
	var mu sync.Mutex
	seen := make(map[string]bool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := &pollingBackend{interval: 20 * time.Millisecond}
	emit := func(e event) {
		mu.Lock()
		seen[e.path] = true
		mu.Unlock()
	}
	go b.run(ctx, rootA, emit)
	go b.run(ctx, rootB, emit)

	// Both watches ride one loop.
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.roots) == 2 && b.running
	}, time.Second, 5*time.Millisecond)

	fileA := filepath.Join(rootA, "a.mkv")
	fileB := filepath.Join(rootB, "b.mkv")
	require.NoError(t, os.WriteFile(fileA, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(fileB, []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[fileA] && seen[fileB]
	}, 3*time.Second, 20*time.Millisecond)

	// The loop winds down with the last watch.
	cancel()
	assert.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.roots) == 0 && !b.running
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatchSourceSubmitsGroup(t *testing.T) {
	records := models.NewTransferRecordStore(testdb.Open(t))
	submitter := &stubSubmitter{}
	src := t.TempDir()

	svc := New(records, submitter, Options{Backend: "polling", PollInterval: 20 * time.Millisecond})
	defer svc.StopAll()

	conf := &models.TransferConfig{ID: 7, SourceFolder: src}
	svc.WatchSource(context.Background(), conf)
	// Watching the same folder twice is a no-op.
	svc.WatchSource(context.Background(), conf)

	video := filepath.Join(src, "Some.Movie", "Some.Movie.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(video), 0755))
	require.NoError(t, os.WriteFile(video, []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		for _, args := range submitter.all() {
			if args.ConfigID == 7 && args.Path == filepath.Join(src, "Some.Movie") {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatchOutputLifecycle(t *testing.T) {
	records := models.NewTransferRecordStore(testdb.Open(t))
	out := t.TempDir()
	dest := filepath.Join(out, "Some.Movie", "Some.Movie.mkv")

	record, err := records.GetOrCreate(context.Background(), 1, "Some.Movie", "/src/Some.Movie/Some.Movie.mkv", "/src")
	require.NoError(t, err)
	record.DestPath = dest
	require.NoError(t, records.Update(context.Background(), record))

	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
	require.NoError(t, os.WriteFile(dest, []byte("x"), 0644))

	svc := New(records, &stubSubmitter{}, Options{Backend: "polling", PollInterval: 20 * time.Millisecond})
	defer svc.StopAll()
	svc.WatchOutput(context.Background(), &models.TransferConfig{ID: 1, OutputFolder: out})

	// Destination removal schedules a dead time.
	require.NoError(t, os.Remove(dest))
	assert.Eventually(t, func() bool {
		r, err := records.Get(context.Background(), record.ID)
		return err == nil && r.Deleted && r.DeadTime != nil
	}, 3*time.Second, 20*time.Millisecond)

	// Reappearance revives the record.
	require.NoError(t, os.WriteFile(dest, []byte("x"), 0644))
	assert.Eventually(t, func() bool {
		r, err := records.Get(context.Background(), record.ID)
		return err == nil && !r.Deleted && r.DeadTime == nil
	}, 3*time.Second, 20*time.Millisecond)
}
