// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package mediafs implements the filesystem primitives of the transfer
// pipeline: video discovery, link/copy/move operations, and sidecar
// handling.
package mediafs

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// VideoExts is the recognized video extension set, lower case with dot.
var VideoExts = map[string]struct{}{
	".mp4": {}, ".avi": {}, ".rmvb": {}, ".wmv": {}, ".strm": {},
	".mov": {}, ".mkv": {}, ".flv": {}, ".ts": {}, ".m2ts": {},
	".webm": {}, ".iso": {},
}

// SubtitleExts is the recognized sidecar subtitle extension set.
var SubtitleExts = map[string]struct{}{
	".ass": {}, ".srt": {}, ".sub": {}, ".ssa": {}, ".smi": {},
	".idx": {}, ".sup": {}, ".psb": {}, ".usf": {}, ".xss": {},
	".ssf": {}, ".rt": {}, ".lrc": {}, ".sbv": {}, ".vtt": {}, ".ttml": {},
}

var (
	defaultEscapeFolders = []string{"@eaDir"}
	defaultEscapeFiles   = []string{".DS_Store", ".drive_sync"}
)

// Op is the filesystem action applied to a transferred file.
type Op string

const (
	OpHardlink Op = "hardlink"
	OpSymlink  Op = "symlink"
	OpMove     Op = "move"
	OpCopy     Op = "copy"
)

// IsVideo reports whether the path has a recognized video extension.
func IsVideo(path string) bool {
	_, ok := VideoExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsSubtitle reports whether the path has a recognized subtitle extension.
func IsSubtitle(path string) bool {
	_, ok := SubtitleExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// FindFiles walks root and returns every file whose extension is in exts,
// skipping escape folders by name and escape files by name. The built-in
// escapes (@eaDir, .DS_Store, .drive_sync) always apply.
func FindFiles(root string, exts map[string]struct{}, escapeFolders, escapeFiles []string) []string {
	skipDirs := make(map[string]struct{}, len(escapeFolders)+len(defaultEscapeFolders))
	for _, d := range append(escapeFolders, defaultEscapeFolders...) {
		if d = strings.TrimSpace(d); d != "" {
			skipDirs[d] = struct{}{}
		}
	}
	skipFiles := make(map[string]struct{}, len(escapeFiles)+len(defaultEscapeFiles))
	for _, f := range append(escapeFiles, defaultEscapeFiles...) {
		if f = strings.TrimSpace(f); f != "" {
			skipFiles[f] = struct{}{}
		}
	}

	var result []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("[MEDIAFS] walk error, skipping")
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if _, skip := skipFiles[d.Name()]; skip {
			return nil
		}
		if _, ok := exts[strings.ToLower(filepath.Ext(d.Name()))]; ok {
			result = append(result, path)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("root", root).Msg("[MEDIAFS] walk failed")
	}
	return result
}

// FindVideos returns every video file under root honoring escape lists.
func FindVideos(root string, escapeFolders, escapeFiles []string) []string {
	return FindFiles(root, VideoExts, escapeFolders, escapeFiles)
}

// HasVideoFiles reports whether any video file exists at the path, a single
// file or a directory tree. Only a confirmed-absent path resolves to false;
// other stat errors resolve to true so callers never delete data on a
// failed check.
func HasVideoFiles(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil {
		return !os.IsNotExist(err)
	}
	if !info.IsDir() {
		return IsVideo(dir)
	}
	return len(FindVideos(dir, nil, nil)) > 0
}

// Exists reports whether the path exists, counting dangling symlinks.
func Exists(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	}
	if _, err := os.Lstat(path); err == nil {
		return true
	}
	return false
}

// LinkFile places srcpath at dstpath using the given operation. A hardlink
// target that already points at the same inode is a no-op, as is a symlink
// already resolving to the source; anything else at the target is replaced.
// Parent directories are created as needed.
func LinkFile(srcpath, dstpath string, op Op) error {
	switch op {
	case OpHardlink:
		if sameFile(srcpath, dstpath) {
			log.Debug().Str("dst", dstpath).Msg("[MEDIAFS] same inode already in place")
			return nil
		}
	case OpSymlink:
		if target, err := os.Readlink(dstpath); err == nil && target == srcpath {
			log.Debug().Str("dst", dstpath).Msg("[MEDIAFS] symlink already in place")
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dstpath), 0755); err != nil {
		return errors.Wrapf(err, "create parent of %s", dstpath)
	}

	log.Debug().Str("src", srcpath).Str("dst", dstpath).Str("op", string(op)).Msg("[MEDIAFS] placing file")

	switch op {
	case OpHardlink:
		return forceLink(srcpath, dstpath, os.Link)
	case OpSymlink:
		return forceLink(srcpath, dstpath, os.Symlink)
	case OpMove:
		return moveFile(srcpath, dstpath)
	case OpCopy:
		return copyFile(srcpath, dstpath)
	default:
		return errors.Errorf("unknown operation %q", op)
	}
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func forceLink(srcpath, dstpath string, link func(string, string) error) error {
	err := link(srcpath, dstpath)
	if err == nil {
		return nil
	}
	if !os.IsExist(err) {
		return errors.Wrapf(err, "link %s to %s", srcpath, dstpath)
	}

	if err := os.Remove(dstpath); err != nil {
		return errors.Wrapf(err, "replace existing %s", dstpath)
	}
	if err := link(srcpath, dstpath); err != nil {
		return errors.Wrapf(err, "link %s to %s", srcpath, dstpath)
	}
	return nil
}

// moveFile renames, falling back to copy-and-remove across filesystems.
func moveFile(srcpath, dstpath string) error {
	if err := os.Rename(srcpath, dstpath); err == nil {
		return nil
	}
	if err := copyFile(srcpath, dstpath); err != nil {
		return err
	}
	if err := os.Remove(srcpath); err != nil {
		return errors.Wrapf(err, "remove source %s after copy", srcpath)
	}
	return nil
}

func copyFile(srcpath, dstpath string) error {
	src, err := os.Open(srcpath)
	if err != nil {
		return errors.Wrapf(err, "open %s", srcpath)
	}
	defer src.Close()

	dst, err := os.Create(dstpath)
	if err != nil {
		return errors.Wrapf(err, "create %s", dstpath)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return errors.Wrapf(err, "copy %s to %s", srcpath, dstpath)
	}
	if err := dst.Close(); err != nil {
		return errors.Wrapf(err, "close %s", dstpath)
	}
	return nil
}

// MoveSubs relocates subtitle files sharing the source basename into
// destfolder under the new basename. With keepSource the subtitles are
// copied, matching link-type transfers where the source tree stays intact.
func MoveSubs(srcfolder, destfolder, basename, newname string, keepSource bool) error {
	entries, err := os.ReadDir(srcfolder)
	if err != nil {
		return errors.Wrapf(err, "read %s", srcfolder)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		if !IsSubtitle(name) || !strings.HasPrefix(stem, basename) {
			continue
		}

		newStem := strings.ReplaceAll(stem, basename, newname)
		newfile := filepath.Join(destfolder, newStem+ext)
		srcfile := filepath.Join(srcfolder, name)

		log.Debug().Str("sub", srcfile).Str("dst", newfile).Msg("[MEDIAFS] relocating subtitle")

		if keepSource {
			err = copyFile(srcfile, newfile)
		} else {
			err = moveFile(srcfile, newfile)
		}
		if err != nil {
			return err
		}

		if err := os.Chmod(newfile, 0766); err != nil {
			log.Warn().Err(err).Str("file", newfile).Msg("[MEDIAFS] chmod failed")
		}
	}
	return nil
}

// CleanByNameSuffix removes files under root (recursively) whose stem starts
// with basename and whose extension is in suffixes. Used to drop stale
// sidecars from prior runs.
func CleanByNameSuffix(root, basename string, suffixes map[string]struct{}) {
	entries, err := os.ReadDir(root)
	if err != nil {
		log.Debug().Err(err).Str("root", root).Msg("[MEDIAFS] clean skipped")
		return
	}

	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if entry.IsDir() {
			CleanByNameSuffix(path, basename, suffixes)
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if _, ok := suffixes[ext]; ok && strings.HasPrefix(stem, basename) {
			log.Debug().Str("file", path).Msg("[MEDIAFS] removing stale file")
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("file", path).Msg("[MEDIAFS] remove failed")
			}
		}
	}
}

// CleanByFilter removes files in root (non-recursive) whose name starts with
// filter. A filter without a part marker never deletes multipart files, so a
// single-part rerun cannot wipe its -CDn siblings.
func CleanByFilter(root, filter string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		log.Debug().Err(err).Str("root", root).Msg("[MEDIAFS] clean skipped")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filter) {
			continue
		}

		if strings.Contains(strings.ToUpper(entry.Name()), "-CD") &&
			!strings.Contains(strings.ToUpper(filter), "-CD") {
			continue
		}

		path := filepath.Join(root, entry.Name())
		log.Info().Str("file", path).Msg("[MEDIAFS] clean file")
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("[MEDIAFS] remove failed")
		}
	}
}

// CleanFolderWithoutSuffix removes every directory under root (root
// included) holding no file with any of the given suffixes. Returns whether
// root contained a matching file.
func CleanFolderWithoutSuffix(root string, suffixes map[string]struct{}) bool {
	hasSuffix := false

	entries, err := os.ReadDir(root)
	if err != nil {
		return true
	}

	for _, entry := range entries {
		if entry.IsDir() {
			if CleanFolderWithoutSuffix(filepath.Join(root, entry.Name()), suffixes) {
				hasSuffix = true
			}
			continue
		}
		if _, ok := suffixes[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			hasSuffix = true
		}
	}

	if !hasSuffix {
		log.Info().Str("folder", root).Msg("[MEDIAFS] removing folder without target files")
		if err := os.RemoveAll(root); err != nil {
			log.Warn().Err(err).Str("folder", root).Msg("[MEDIAFS] remove failed")
		}
	}
	return hasSuffix
}
