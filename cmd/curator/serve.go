// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/curator/internal/buildinfo"
	"github.com/autobrr/curator/internal/config"
	"github.com/autobrr/curator/internal/database"
	"github.com/autobrr/curator/internal/downloader"
	"github.com/autobrr/curator/internal/emby"
	"github.com/autobrr/curator/internal/logger"
	"github.com/autobrr/curator/internal/models"
	"github.com/autobrr/curator/internal/monitor"
	"github.com/autobrr/curator/internal/proxy"
	"github.com/autobrr/curator/internal/services/cleanup"
	"github.com/autobrr/curator/internal/services/nfoimport"
	"github.com/autobrr/curator/internal/services/scrape"
	"github.com/autobrr/curator/internal/services/transfer"
	"github.com/autobrr/curator/internal/tasks"
)

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest engine",
		Long:  "Run the ingest engine: watch configured folders, resolve metadata and place media into the library.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration file or directory")

	return cmd
}

func runServe(cmdCtx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}
	cfg.Config.Version = buildinfo.Version

	logger.Setup(cfg.Config)
	log.Info().Str("version", buildinfo.Version).Msg("[SERVE] starting curator")

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	transferConfigs := models.NewTransferConfigStore(db)
	scrapingConfigs := models.NewScrapingConfigStore(db)
	records := models.NewTransferRecordStore(db)
	metadata := models.NewMetadataStore(db)
	extras := models.NewExtraInfoStore(db)
	downloads := models.NewDownloadStore(db)
	mediaItems := models.NewMediaItemStore(db)
	taskStore := models.NewTaskStore(db)

	httpClient, err := proxy.NewHTTPClient(cfg.Config)
	if err != nil {
		return err
	}

	artwork := scrape.NewArtworkCache(downloads, httpClient, cfg.GetImageCacheDir())
	resolver := scrape.New(metadata, extras, scrapingConfigs, nil, artwork)
	transferSvc := transfer.New(records, resolver)
	nfoImport := nfoimport.New(metadata)
	embyClient := emby.NewClient(cfg.Config.EmbyURL, cfg.Config.EmbyAPIKey, httpClient)

	var torrents cleanup.TorrentClient
	if cfg.Config.QbitURL != "" {
		mappings, err := cfg.Config.ParsePathMappings()
		if err != nil {
			return err
		}
		client, err := downloader.NewClient(cfg.Config.QbitURL, cfg.Config.QbitUsername, cfg.Config.QbitPassword, mappings)
		if err != nil {
			// The torrent handshake is best effort; records are still
			// cleaned without it.
			log.Warn().Err(err).Msg("[SERVE] qbittorrent unavailable, torrent cleanup disabled")
		} else {
			torrents = client
		}
	}

	cleanupSvc := cleanup.New(records, extras, metadata, mediaItems, torrents, cfg.Config.DeadTimeDays)

	dispatcher := tasks.NewDispatcher(taskStore, cfg.Config.MaxConcurrentTasks)
	tasks.RegisterHandlers(dispatcher, tasks.Services{
		Configs:   transferConfigs,
		Transfer:  transferSvc,
		Resolver:  resolver,
		NFOImport: nfoImport,
		Emby:      embyClient,
	})

	if err := dispatcher.Recover(ctx); err != nil {
		return err
	}
	dispatcher.Start(ctx)
	go dispatcher.RunPruner(ctx, cfg.Config.TaskRetentionDays)
	go cleanupSvc.Run(ctx, time.Duration(cfg.Config.CleanupIntervalHours)*time.Hour)

	mon := monitor.New(records, dispatcher, monitor.Options{
		Backend:      cfg.Config.MonitorBackend,
		PollInterval: time.Duration(cfg.Config.PollIntervalSeconds) * time.Second,
		DeadTimeDays: cfg.Config.DeadTimeDays,
	})

	watched, err := transferConfigs.ListWatched(ctx)
	if err != nil {
		return err
	}
	for _, conf := range watched {
		mon.WatchSource(ctx, conf)
		if conf.OutputFolder != "" {
			mon.WatchOutput(ctx, conf)
		}
	}
	log.Info().Int("pipelines", len(watched)).Msg("[SERVE] monitoring started")

	<-ctx.Done()
	log.Info().Msg("[SERVE] shutting down")

	mon.StopAll()
	dispatcher.Wait()

	return nil
}
