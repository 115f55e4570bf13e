// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package monitor

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/curator/internal/mediafs"
)

// fileStat is the stability fingerprint of one file between polls.
type fileStat struct {
	size  int64
	mtime time.Time
}

// pollState tracks one watched root between ticks.
type pollState struct {
	stable   map[string]fileStat
	unstable map[string]fileStat
	emit     func(event)
}

// pollingBackend rescans watched trees at a fixed interval and diffs
// snapshots. A single loop services every registered root. A new file is
// held back until two consecutive snapshots agree on its (size, mtime), so
// a copy in progress is never handed to the pipeline.
type pollingBackend struct {
	interval time.Duration

	mu      sync.Mutex
	roots   map[string]*pollState
	running bool
}

// run registers the root with the shared loop and blocks until the watch is
// cancelled. The loop itself starts with the first root and exits with the
// last.
func (b *pollingBackend) run(ctx context.Context, root string, emit func(event)) error {
	b.add(root, emit)
	defer b.remove(root)

	<-ctx.Done()
	return ctx.Err()
}

func (b *pollingBackend) add(root string, emit func(event)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.roots == nil {
		b.roots = make(map[string]*pollState)
	}
	b.roots[root] = &pollState{
		stable:   snapshot(root),
		unstable: make(map[string]fileStat),
		emit:     emit,
	}
	if !b.running {
		b.running = true
		go b.loop()
	}
}

func (b *pollingBackend) remove(root string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.roots, root)
}

// loop ticks every root in turn. The lock is held for the whole tick, so
// remove joins any in-flight poll and no event is emitted for a root after
// its watch is torn down.
func (b *pollingBackend) loop() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for range ticker.C {
		b.mu.Lock()
		if len(b.roots) == 0 {
			b.running = false
			b.mu.Unlock()
			return
		}
		for root, st := range b.roots {
			st.poll(root)
		}
		b.mu.Unlock()
	}
}

func (st *pollState) poll(root string) {
	current := snapshot(root)

	for path, stat := range current {
		if _, known := st.stable[path]; known {
			continue
		}
		if held, seen := st.unstable[path]; seen && held == stat {
			delete(st.unstable, path)
			st.stable[path] = stat
			st.emit(event{path: path, op: opCreated})
			continue
		}
		st.unstable[path] = stat
	}

	for path := range st.stable {
		if _, present := current[path]; !present {
			delete(st.stable, path)
			st.emit(event{path: path, op: opDeleted})
		}
	}
	for path := range st.unstable {
		if _, present := current[path]; !present {
			delete(st.unstable, path)
		}
	}
}

// snapshot collects (size, mtime) for every video file under root.
// Directories never enter the comparison.
func snapshot(root string) map[string]fileStat {
	files := make(map[string]fileStat)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !mediafs.IsVideo(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files[path] = fileStat{size: info.Size(), mtime: info.ModTime()}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("path", root).Msg("[MONITOR] snapshot failed")
	}
	return files
}
