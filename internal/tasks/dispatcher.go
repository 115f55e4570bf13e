// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tasks is the durable at-least-once job queue. Every pipeline
// invocation gets a task row and a worker, is retried on transient failure
// and always reaches a terminal status that survives a restart.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/autobrr/curator/internal/models"
)

// Task types the dispatcher routes.
const (
	TypeTransferAll    = "transfer:all"
	TypeTransferGroup  = "transfer:group"
	TypeScrapingSingle = "scraping:single"
	TypeCleanOthers    = "clean:others"
	TypeEmbyScan       = "emby:scan"
	TypeImportNFO      = "import:nfo"
)

// Args carries the per-type task arguments. Unused fields stay zero.
type Args struct {
	ConfigID int64
	Path     string
	Allow    []string // clean:others allow-list
	Folder   string   // import:nfo root
	Force    bool     // import:nfo overwrite mode
}

// Reporter lets a handler publish progress against its own task row.
type Reporter struct {
	store  *models.TaskStore
	taskID string
}

func (r *Reporter) Progress(ctx context.Context, progress float64, step string) {
	if err := r.store.UpdateProgress(ctx, r.taskID, progress, step); err != nil {
		log.Warn().Err(err).Str("task", r.taskID).Msg("[TASKS] progress update failed")
	}
}

func (r *Reporter) Detail(ctx context.Context, detail string) {
	if err := r.store.UpdateDetail(ctx, r.taskID, detail); err != nil {
		log.Warn().Err(err).Str("task", r.taskID).Msg("[TASKS] detail update failed")
	}
}

// Handler runs one task attempt. The returned string becomes the task's
// result payload.
type Handler func(ctx context.Context, r *Reporter, args Args) (string, error)

type job struct {
	taskID   string
	taskType string
	args     Args
}

// Dispatcher owns the worker pool. Group transfers are additionally gated
// by a process-wide semaphore, acquired inside the worker so queue depth is
// independent of parallelism.
type Dispatcher struct {
	store    *models.TaskStore
	handlers map[string]Handler
	queue    chan job
	sem      *semaphore.Weighted
	workers  int

	retryAttempts uint
	retryDelay    time.Duration

	inflight sync.Map // fingerprint -> task id
	wg       sync.WaitGroup
}

func NewDispatcher(store *models.TaskStore, maxConcurrent int) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &Dispatcher{
		store:         store,
		handlers:      make(map[string]Handler),
		queue:         make(chan job, 256),
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		workers:       maxConcurrent * 2,
		// Initial attempt plus three retries.
		retryAttempts: 4,
		retryDelay:    time.Second,
	}
}

// Register binds a handler to a task type. Not safe after Start.
func (d *Dispatcher) Register(taskType string, h Handler) {
	d.handlers[taskType] = h
}

// Recover fails every task row left PENDING or PROGRESS by a previous
// process. Safe because the pipeline is idempotent; the rows only ever lied
// about liveness.
func (d *Dispatcher) Recover(ctx context.Context) error {
	n, err := d.store.FailActive(ctx, "cleaned on startup")
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("tasks", n).Msg("[TASKS] stale tasks failed on startup")
	}
	return nil
}

// Start launches the worker pool. Workers exit when the context ends;
// Wait blocks until they drain.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	log.Info().Int("workers", d.workers).Msg("[TASKS] dispatcher started")
}

func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Submit creates a task row and enqueues it. Group submissions carrying a
// fingerprint already in flight return the existing task id instead of
// queueing a duplicate.
func (d *Dispatcher) Submit(ctx context.Context, taskType, name string, args Args) (string, error) {
	if _, ok := d.handlers[taskType]; !ok {
		return "", errors.Errorf("no handler for task type %s", taskType)
	}

	var fingerprint string
	if taskType == TypeTransferGroup {
		fingerprint = fmt.Sprintf("%d|%s", args.ConfigID, args.Path)
		if existing, loaded := d.inflight.Load(fingerprint); loaded {
			log.Debug().Str("fingerprint", fingerprint).Msg("[TASKS] duplicate group submission collapsed")
			return existing.(string), nil
		}
	}

	taskID := uuid.NewString()
	if _, err := d.store.Create(ctx, &models.Task{
		TaskID:   taskID,
		TaskType: taskType,
		Name:     name,
	}); err != nil {
		return "", errors.Wrap(err, "create task")
	}

	if fingerprint != "" {
		d.inflight.Store(fingerprint, taskID)
	}

	select {
	case d.queue <- job{taskID: taskID, taskType: taskType, args: args}:
	case <-ctx.Done():
		if fingerprint != "" {
			d.inflight.Delete(fingerprint)
		}
		return "", ctx.Err()
	}

	log.Debug().Str("task", taskID).Str("type", taskType).Msg("[TASKS] submitted")
	return taskID, nil
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			d.run(ctx, j)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, j job) {
	if j.taskType == TypeTransferGroup {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer d.sem.Release(1)
		defer d.inflight.Delete(fmt.Sprintf("%d|%s", j.args.ConfigID, j.args.Path))
	}

	handler := d.handlers[j.taskType]
	reporter := &Reporter{store: d.store, taskID: j.taskID}
	reporter.Progress(ctx, 0, "starting")

	var result string
	err := retry.Do(
		func() error {
			var attemptErr error
			result, attemptErr = handler(ctx, reporter, j.args)
			return attemptErr
		},
		retry.Context(ctx),
		retry.Attempts(d.retryAttempts),
		retry.Delay(d.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		log.Error().Err(err).Str("task", j.taskID).Str("type", j.taskType).Msg("[TASKS] task failed")
		if failErr := d.store.Fail(ctx, j.taskID, err.Error()); failErr != nil {
			log.Error().Err(failErr).Str("task", j.taskID).Msg("[TASKS] failure status write failed")
		}
		return
	}

	if err := d.store.Complete(ctx, j.taskID, result, models.TaskStatusSuccess); err != nil {
		log.Error().Err(err).Str("task", j.taskID).Msg("[TASKS] completion status write failed")
	}
	log.Debug().Str("task", j.taskID).Str("type", j.taskType).Msg("[TASKS] done")
}

// RunPruner deletes terminal task rows past the retention window until the
// context ends.
func (d *Dispatcher) RunPruner(ctx context.Context, retentionDays int) {
	if retentionDays <= 0 {
		retentionDays = 30
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -retentionDays)
			n, err := d.store.DeleteOld(ctx, cutoff)
			if err != nil {
				log.Error().Err(err).Msg("[TASKS] prune failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("tasks", n).Msg("[TASKS] old tasks pruned")
			}
		}
	}
}
