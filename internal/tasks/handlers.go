// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/curator/internal/emby"
	"github.com/autobrr/curator/internal/models"
	"github.com/autobrr/curator/internal/services/nfoimport"
	"github.com/autobrr/curator/internal/services/transfer"
)

// Services bundles the collaborators the task handlers drive.
type Services struct {
	Configs   *models.TransferConfigStore
	Transfer  *transfer.Service
	Resolver  transfer.Resolver
	NFOImport *nfoimport.Service
	Emby      *emby.Client
}

// RegisterHandlers binds every task type to its pipeline entry point.
func RegisterHandlers(d *Dispatcher, s Services) {
	d.Register(TypeTransferAll, s.transferAll(d))
	d.Register(TypeTransferGroup, s.transferGroup)
	d.Register(TypeScrapingSingle, s.scrapingSingle)
	d.Register(TypeCleanOthers, s.cleanOthers)
	d.Register(TypeEmbyScan, s.embyScan)
	d.Register(TypeImportNFO, s.importNFO)
}

// transferAll scans every top-level child of the source folder and runs the
// groups inline, so the allow-list for clean-others covers the whole pass.
// A failing group is logged and skipped; the survivors still reach the
// post-steps.
func (s Services) transferAll(d *Dispatcher) Handler {
	return func(ctx context.Context, r *Reporter, args Args) (string, error) {
		conf, err := s.Configs.Get(ctx, args.ConfigID)
		if err != nil {
			return "", err
		}

		entries, err := os.ReadDir(conf.SourceFolder)
		if err != nil {
			return "", errors.Wrapf(err, "read %s", conf.SourceFolder)
		}

		var done []string
		failed := 0
		for i, entry := range entries {
			r.Progress(ctx, float64(i)/float64(len(entries))*90, entry.Name())

			paths, err := s.Transfer.ProcessGroup(ctx, conf, filepath.Join(conf.SourceFolder, entry.Name()))
			if err != nil {
				log.Error().Err(err).Str("group", entry.Name()).Msg("[TASKS] group failed within transfer:all")
				failed++
				continue
			}
			done = append(done, paths...)
		}

		removed := 0
		if conf.CleanOthers {
			r.Progress(ctx, 95, "cleaning others")
			if removed, err = s.Transfer.CleanOthers(ctx, conf, done); err != nil {
				log.Error().Err(err).Msg("[TASKS] clean others failed")
			}
		}

		if s.Emby.Enabled() && len(done) > 0 {
			if _, err := d.Submit(ctx, TypeEmbyScan, "library scan", Args{}); err != nil {
				log.Warn().Err(err).Msg("[TASKS] emby scan submission failed")
			}
		}

		return fmt.Sprintf("transferred %d, failed groups %d, cleaned %d", len(done), failed, removed), nil
	}
}

func (s Services) transferGroup(ctx context.Context, _ *Reporter, args Args) (string, error) {
	conf, err := s.Configs.Get(ctx, args.ConfigID)
	if err != nil {
		return "", err
	}

	done, err := s.Transfer.ProcessGroup(ctx, conf, args.Path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("transferred %d", len(done)), nil
}

func (s Services) scrapingSingle(ctx context.Context, _ *Reporter, args Args) (string, error) {
	conf, err := s.Configs.Get(ctx, args.ConfigID)
	if err != nil {
		return "", err
	}

	var scrapingID int64
	if conf.ScrapingID != nil {
		scrapingID = *conf.ScrapingID
	}

	plan, err := s.Resolver.Plan(ctx, args.Path, scrapingID)
	if err != nil {
		return "", err
	}
	if plan == nil {
		return "no metadata found", nil
	}
	return plan.Folder + "/" + plan.Filename, nil
}

func (s Services) cleanOthers(ctx context.Context, _ *Reporter, args Args) (string, error) {
	conf, err := s.Configs.Get(ctx, args.ConfigID)
	if err != nil {
		return "", err
	}

	removed, err := s.Transfer.CleanOthers(ctx, conf, args.Allow)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("removed %d", removed), nil
}

func (s Services) embyScan(ctx context.Context, _ *Reporter, _ Args) (string, error) {
	if err := s.Emby.Scan(ctx); err != nil {
		return "", err
	}
	return "scan triggered", nil
}

func (s Services) importNFO(ctx context.Context, r *Reporter, args Args) (string, error) {
	r.Detail(ctx, args.Folder)
	imported, err := s.NFOImport.Import(ctx, args.Folder, args.Force)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("imported %d", imported), nil
}
