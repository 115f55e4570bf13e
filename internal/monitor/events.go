// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package monitor

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/curator/internal/mediafs"
)

// eventsBackend subscribes to OS notifications. fsnotify is not recursive,
// so every directory under the root is added individually and newly created
// directories are added as they appear.
type eventsBackend struct{}

func (b *eventsBackend) run(ctx context.Context, root string, emit func(event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	if err := addRecursive(watcher, root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			b.handle(watcher, ev, emit)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("path", root).Msg("[MONITOR] watcher error")
		}
	}
}

func (b *eventsBackend) handle(watcher *fsnotify.Watcher, ev fsnotify.Event, emit func(event)) {
	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := addRecursive(watcher, ev.Name); err != nil {
				log.Warn().Err(err).Str("path", ev.Name).Msg("[MONITOR] watch add failed")
			}
			// Files extracted into the new directory before the watch was
			// in place are picked up here.
			for _, p := range mediafs.FindVideos(ev.Name, nil, nil) {
				emit(event{path: p, op: opCreated})
			}
			return
		}
		if mediafs.IsVideo(ev.Name) {
			emit(event{path: ev.Name, op: opCreated})
		}

	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		// The entry is gone; there is no way to tell a file from a
		// directory anymore. Record matching is prefix-based so both work.
		emit(event{path: ev.Name, op: opDeleted})
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || strings.HasPrefix(d.Name(), "@") {
			return nil
		}
		return watcher.Add(path)
	})
}

// groupPath maps a created file back to the top-level entry it belongs to,
// which is the unit the pipeline processes.
func groupPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return path
	}
	segments := strings.SplitN(filepath.ToSlash(rel), "/", 2)
	return filepath.Join(root, segments[0])
}
