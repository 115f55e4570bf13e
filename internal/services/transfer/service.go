// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package transfer implements the ingest pipeline: it discovers video files
// under a group path, plans their destination from parsed names or scraped
// metadata, performs the configured filesystem operation, and keeps transfer
// records current.
package transfer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/curator/internal/mediafs"
	"github.com/autobrr/curator/internal/models"
)

// NamePlan is the resolver's verdict for one file: where it goes under the
// output root and what it is called, both derived from scraped metadata.
type NamePlan struct {
	// Folder is the relative destination folder, possibly nested
	// ("Actor/ABC-123 Title").
	Folder string
	// Filename is the destination basename without extension.
	Filename string
	// PartOne marks the only or first part of a release; NFO and artwork
	// are written once, alongside this part.
	PartOne bool
}

// Resolver supplies scraped naming decisions for scrape-enabled pipelines.
// Plan returns (nil, nil) when the scrape came back empty; the file is then
// recorded as unsuccessful without failing the group.
type Resolver interface {
	Plan(ctx context.Context, srcPath string, scrapingID int64) (*NamePlan, error)
	WriteSidecars(ctx context.Context, srcPath, destFolder, basename string) error
}

// Service executes transfer groups against the record store.
type Service struct {
	records  *models.TransferRecordStore
	resolver Resolver
}

func New(records *models.TransferRecordStore, resolver Resolver) *Service {
	return &Service{records: records, resolver: resolver}
}

// ProcessGroup transfers every video file under fullPath (a top-level entry
// of the pipeline's source folder, or a single file). Files are processed
// sequentially; a record row is committed after each one so partial progress
// survives a crash. Returns the destination paths placed during this run.
//
// Empty scrapes mark the record unsuccessful and continue with the next
// file. Filesystem errors abort the group and surface to the dispatcher's
// retry policy.
func (s *Service) ProcessGroup(ctx context.Context, conf *models.TransferConfig, fullPath string) ([]string, error) {
	log.Info().Int64("config", conf.ID).Str("path", fullPath).Msg("[TRANSFER] group start")

	group := s.collectFiles(conf, fullPath)
	done := make([]string, 0, len(group))

	for _, src := range group {
		record, err := s.records.GetOrCreate(ctx, conf.ID, src.Basename, src.FullPath, conf.SourceFolder)
		if err != nil {
			return done, errors.Wrapf(err, "record for %s", src.FullPath)
		}
		if record.Ignored {
			log.Debug().Str("path", src.FullPath).Msg("[TRANSFER] record ignored, skipping")
			continue
		}

		dest, err := s.transferOne(ctx, conf, src, record, group)
		if err != nil {
			return done, errors.Wrapf(err, "transfer %s", src.FullPath)
		}
		if dest != "" {
			done = append(done, dest)
		}
	}

	log.Info().Int64("config", conf.ID).Str("path", fullPath).Int("transferred", len(done)).Msg("[TRANSFER] group end")
	return done, nil
}

// collectFiles builds the working set for one group path. Directories are
// walked for videos honoring the config's escape lists; a plain file yields
// a single-entry set when it is a video at all.
func (s *Service) collectFiles(conf *models.TransferConfig, fullPath string) []*SourceFile {
	info, err := os.Stat(fullPath)
	if err != nil {
		log.Warn().Err(err).Str("path", fullPath).Msg("[TRANSFER] group path unavailable")
		return nil
	}

	var paths []string
	if info.IsDir() {
		paths = mediafs.FindVideos(fullPath, splitList(conf.EscapeFolders), nil)
	} else if mediafs.IsVideo(fullPath) {
		paths = []string{fullPath}
	}

	literals := splitList(conf.EscapeLiterals)
	files := make([]*SourceFile, 0, len(paths))
	for _, p := range paths {
		if skipByLiteral(filepath.Base(p), literals) {
			continue
		}
		if conf.EscapeSize > 0 {
			// EscapeSize is a byte threshold.
			if fi, err := os.Stat(p); err == nil && fi.Size() < conf.EscapeSize {
				log.Debug().Str("path", p).Msg("[TRANSFER] below size threshold, skipping")
				continue
			}
		}
		f := NewSourceFile(p)
		f.SetRootFolder(conf.SourceFolder)
		files = append(files, f)
	}
	return files
}

func (s *Service) transferOne(ctx context.Context, conf *models.TransferConfig, src *SourceFile, record *models.TransferRecord, group []*SourceFile) (string, error) {
	target := NewTargetFile(conf.OutputFolder)
	target.ApplyRecord(record)

	if conf.ScrapeEnabled {
		return s.transferScraped(ctx, conf, src, record, target)
	}
	return s.transferPlain(ctx, conf, src, record, target, group)
}

// transferPlain computes the destination from the source's relative layout
// and episode identity, then places the file.
func (s *Service) transferPlain(ctx context.Context, conf *models.TransferConfig, src *SourceFile, record *models.TransferRecord, target *TargetFile, group []*SourceFile) (string, error) {
	target.TopFolder = src.TopFolder
	target.SecondFolder = src.SecondFolder
	target.Basename = src.Basename
	target.Ext = src.Ext

	handleGroupNaming(src, target, group)
	if conf.OptimizeName {
		target.TopFolder = simplifyFolderName(src.TopFolder)
	}
	if conf.ContentType == models.ContentTypeSeries && (target.IsEpisode || src.IsEpisode) {
		fixSeriesNaming(src, target)
	}

	// A locked record pins the user-edited layout regardless of what the
	// planner derived.
	if record.Locked {
		if record.TopFolder != "" {
			target.TopFolder = record.TopFolder
		}
		if record.SecondFolder != "" {
			target.SecondFolder = record.SecondFolder
		}
		if record.ForcedName != "" {
			target.Basename = record.ForcedName
		}
	}
	target.Filename = target.Basename + target.Ext

	folder := filepath.Join(target.RootFolder, target.TopFolder, target.SecondFolder)
	dest, err := s.placeFile(src, folder, target.Basename, conf.Operation)
	if err != nil {
		return "", err
	}
	target.FullPath = dest

	if err := s.updateRecord(ctx, record, target); err != nil {
		return "", err
	}
	return dest, nil
}

// transferScraped places the file under the resolver-computed folder and
// name, writing NFO and artwork next to the first part.
func (s *Service) transferScraped(ctx context.Context, conf *models.TransferConfig, src *SourceFile, record *models.TransferRecord, target *TargetFile) (string, error) {
	if s.resolver == nil {
		return "", errors.New("scraping enabled but no resolver configured")
	}
	var scrapingID int64
	if conf.ScrapingID != nil {
		scrapingID = *conf.ScrapingID
	}

	plan, err := s.resolver.Plan(ctx, src.FullPath, scrapingID)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", src.FullPath)
	}
	if plan == nil {
		log.Warn().Str("path", src.FullPath).Msg("[TRANSFER] scrape empty, marking record unsuccessful")
		if err := s.records.SetSuccess(ctx, record.ID, false); err != nil {
			return "", err
		}
		return "", nil
	}

	folder := filepath.Join(conf.OutputFolder, filepath.FromSlash(plan.Folder))
	dest, err := s.placeFile(src, folder, plan.Filename, conf.Operation)
	if err != nil {
		return "", err
	}
	if plan.PartOne {
		if err := s.resolver.WriteSidecars(ctx, src.FullPath, folder, plan.Filename); err != nil {
			log.Warn().Err(err).Str("path", dest).Msg("[TRANSFER] sidecar write failed")
		}
	}

	segments := strings.Split(filepath.ToSlash(plan.Folder), "/")
	target.TopFolder = segments[0]
	if len(segments) > 1 {
		target.SecondFolder = filepath.Join(segments[1:]...)
	}
	target.Basename = plan.Filename
	target.Ext = src.Ext
	target.FullPath = dest

	if err := s.updateRecord(ctx, record, target); err != nil {
		return "", err
	}
	return dest, nil
}

// placeFile performs the filesystem half of a transfer: ensure the folder,
// drop stale sidecars from prior runs, place the video, and bring matching
// subtitles along. Link and copy operations keep the source tree intact, so
// subtitles are copied rather than moved for those.
func (s *Service) placeFile(src *SourceFile, folder, basename string, op models.Operation) (string, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", errors.Wrapf(err, "create %s", folder)
	}
	mediafs.CleanByNameSuffix(folder, basename, mediafs.SubtitleExts)

	dest := filepath.Join(folder, basename+src.Ext)
	if err := mediafs.LinkFile(src.FullPath, dest, mediafs.Op(op)); err != nil {
		return "", err
	}

	keepSource := op != models.OperationMove
	if err := mediafs.MoveSubs(src.ParentFolder, folder, src.Basename, basename, keepSource); err != nil {
		log.Warn().Err(err).Str("path", src.FullPath).Msg("[TRANSFER] subtitle relocation failed")
	}
	return dest, nil
}

// updateRecord commits the outcome of one placed file and removes a
// superseded destination left by an earlier run under a different plan.
func (s *Service) updateRecord(ctx context.Context, record *models.TransferRecord, target *TargetFile) error {
	prev := record.DestPath

	success := true
	record.Success = &success
	record.Deleted = false
	record.DeadTime = nil
	record.DestPath = target.FullPath
	record.TopFolder = target.TopFolder
	record.SecondFolder = target.SecondFolder
	record.IsEpisode = target.IsEpisode
	record.Season = target.Season
	record.Episode = target.Episode

	if err := s.records.Update(ctx, record); err != nil {
		return errors.Wrap(err, "update record")
	}

	if prev != "" && prev != target.FullPath && mediafs.Exists(prev) {
		log.Info().Str("previous", prev).Str("current", target.FullPath).Msg("[TRANSFER] removing superseded destination")
		if err := os.Remove(prev); err != nil {
			log.Warn().Err(err).Str("path", prev).Msg("[TRANSFER] remove failed")
		}
	}
	return nil
}

// CleanOthers removes every video under the output folder that is not in
// the allow-list accumulated by this run, then prunes directories left
// without any video. Returns the number of files removed.
//
// Ignored and locked records never enter the run's allow-list because
// ProcessGroup skips them, so their destinations are added here; their
// placed files are off limits to every cleanup pass.
func (s *Service) CleanOthers(ctx context.Context, conf *models.TransferConfig, done []string) (int, error) {
	if !conf.CleanOthers {
		return 0, nil
	}

	protected, err := s.records.ListProtectedDestPaths(ctx, conf.ID)
	if err != nil {
		return 0, errors.Wrap(err, "list protected destpaths")
	}

	allow := make(map[string]struct{}, len(done)+len(protected))
	for _, d := range done {
		allow[d] = struct{}{}
	}
	for _, p := range protected {
		allow[p] = struct{}{}
	}

	removed := 0
	for _, p := range mediafs.FindVideos(conf.OutputFolder, nil, nil) {
		if _, ok := allow[p]; ok {
			continue
		}
		log.Info().Str("path", p).Msg("[TRANSFER] clean others: removing")
		if err := os.Remove(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("[TRANSFER] remove failed")
			continue
		}
		removed++
	}

	entries, err := os.ReadDir(conf.OutputFolder)
	if err != nil {
		return removed, errors.Wrapf(err, "read %s", conf.OutputFolder)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			mediafs.CleanFolderWithoutSuffix(filepath.Join(conf.OutputFolder, entry.Name()), mediafs.VideoExts)
		}
	}
	return removed, nil
}

// splitList splits a comma-separated config value, accepting the full-width
// comma.
func splitList(csv string) []string {
	if csv == "" {
		return nil
	}
	fields := strings.FieldsFunc(csv, func(r rune) bool { return r == ',' || r == '，' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func skipByLiteral(name string, literals []string) bool {
	for _, l := range literals {
		if strings.Contains(name, l) {
			return true
		}
	}
	return false
}
