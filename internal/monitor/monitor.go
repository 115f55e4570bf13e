// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package monitor watches source and output folders and turns filesystem
// activity into pipeline work: new source files become group tasks, output
// changes feed the record lifecycle. Two interchangeable backends exist;
// polling is the one to use on network mounts where notifications lie.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/curator/internal/models"
	"github.com/autobrr/curator/internal/tasks"
)

// Role decides how a watched folder's events are interpreted.
type Role int

const (
	// RoleSource folders feed the transfer pipeline.
	RoleSource Role = iota
	// RoleOutput folders feed the record lifecycle (revive/dead-time).
	RoleOutput
)

type eventOp int

const (
	opCreated eventOp = iota
	opDeleted
)

type event struct {
	path string
	op   eventOp
}

// backend delivers events for one root until the context ends.
type backend interface {
	run(ctx context.Context, root string, emit func(event)) error
}

// Submitter is the dispatcher surface the monitor needs.
type Submitter interface {
	Submit(ctx context.Context, taskType, name string, args tasks.Args) (string, error)
}

type watch struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Service manages the set of active watches.
type Service struct {
	records    *models.TransferRecordStore
	dispatcher Submitter
	backend    backend
	deadTime   time.Duration

	mu      sync.Mutex
	watches map[string]*watch
}

// Options tune backend selection and lifecycle timing.
type Options struct {
	Backend      string // domain.MonitorBackendEvents or ...Polling
	PollInterval time.Duration
	DeadTimeDays int
}

func New(records *models.TransferRecordStore, dispatcher Submitter, opts Options) *Service {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.DeadTimeDays <= 0 {
		opts.DeadTimeDays = 7
	}

	var b backend
	if opts.Backend == "polling" {
		b = &pollingBackend{interval: opts.PollInterval}
	} else {
		b = &eventsBackend{}
	}

	return &Service{
		records:    records,
		dispatcher: dispatcher,
		backend:    b,
		deadTime:   time.Duration(opts.DeadTimeDays) * 24 * time.Hour,
		watches:    make(map[string]*watch),
	}
}

// WatchSource activates a watch on the config's source folder. Watching an
// already-active folder is a no-op.
func (s *Service) WatchSource(ctx context.Context, conf *models.TransferConfig) {
	s.start(ctx, conf.SourceFolder, func(ctx context.Context, e event) {
		s.handleSource(ctx, conf, e)
	})
}

// WatchOutput activates a watch on the config's output folder.
func (s *Service) WatchOutput(ctx context.Context, conf *models.TransferConfig) {
	s.start(ctx, conf.OutputFolder, func(ctx context.Context, e event) {
		s.handleOutput(ctx, e)
	})
}

func (s *Service) start(ctx context.Context, root string, handle func(context.Context, event)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, active := s.watches[root]; active {
		log.Debug().Str("path", root).Msg("[MONITOR] already watching")
		return
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &watch{cancel: cancel, done: make(chan struct{})}
	s.watches[root] = w

	go func() {
		defer close(w.done)
		err := s.backend.run(watchCtx, root, func(e event) {
			handle(watchCtx, e)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("path", root).Msg("[MONITOR] watch stopped")
		}
	}()

	log.Info().Str("path", root).Msg("[MONITOR] watching")
}

// Stop deactivates the watch on a folder, joining its goroutine.
func (s *Service) Stop(root string) {
	s.mu.Lock()
	w := s.watches[root]
	delete(s.watches, root)
	s.mu.Unlock()

	if w == nil {
		return
	}
	w.cancel()
	<-w.done
	log.Info().Str("path", root).Msg("[MONITOR] stopped")
}

// StopAll tears down every watch; used at shutdown.
func (s *Service) StopAll() {
	s.mu.Lock()
	watches := s.watches
	s.watches = make(map[string]*watch)
	s.mu.Unlock()

	for root, w := range watches {
		w.cancel()
		<-w.done
		log.Debug().Str("path", root).Msg("[MONITOR] stopped")
	}
}

// handleSource submits a group task for arrivals and marks records whose
// source vanished. The group is the top-level entry under the source folder
// so sibling files land in one pipeline pass.
func (s *Service) handleSource(ctx context.Context, conf *models.TransferConfig, e event) {
	switch e.op {
	case opCreated:
		group := groupPath(conf.SourceFolder, e.path)
		if _, err := s.dispatcher.Submit(ctx, tasks.TypeTransferGroup, group, tasks.Args{
			ConfigID: conf.ID,
			Path:     group,
		}); err != nil {
			log.Error().Err(err).Str("path", group).Msg("[MONITOR] group submission failed")
		}
	case opDeleted:
		n, err := s.records.MarkSourceDeleted(ctx, e.path)
		if err != nil {
			log.Error().Err(err).Str("path", e.path).Msg("[MONITOR] source-deleted update failed")
			return
		}
		if n > 0 {
			log.Info().Str("path", e.path).Int64("records", n).Msg("[MONITOR] source deleted")
		}
	}
}

// handleOutput revives records whose destination reappeared and schedules
// dead time for ones whose destination went away.
func (s *Service) handleOutput(ctx context.Context, e event) {
	switch e.op {
	case opCreated:
		if _, err := s.records.ReviveByDestPath(ctx, e.path); err != nil {
			log.Error().Err(err).Str("path", e.path).Msg("[MONITOR] revive failed")
		}
	case opDeleted:
		deadtime := time.Now().Add(s.deadTime)
		if _, err := s.records.MarkDeletedByDestPath(ctx, e.path, deadtime); err != nil {
			log.Error().Err(err).Str("path", e.path).Msg("[MONITOR] dead-time update failed")
		}
	}
}
