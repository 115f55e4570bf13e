// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/curator/internal/dbinterface"
)

// TaskStatus is the lifecycle state of a queued pipeline invocation.
type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "PENDING"
	TaskStatusProgress TaskStatus = "PROGRESS"
	TaskStatusSuccess  TaskStatus = "SUCCESS"
	TaskStatusFailure  TaskStatus = "FAILURE"
	TaskStatusRevoked  TaskStatus = "REVOKED"
)

// IsTerminal returns true once the task can no longer transition.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusFailure, TaskStatusRevoked:
		return true
	}
	return false
}

// Task is the durable projection of an in-flight pipeline invocation.
type Task struct {
	TaskID       string     `json:"taskId"`
	TaskType     string     `json:"taskType"`
	Name         string     `json:"name"`
	Status       TaskStatus `json:"status"`
	Progress     float64    `json:"progress"`
	Step         string     `json:"step"`
	Detail       string     `json:"detail"`
	Result       string     `json:"result"`
	ErrorMessage string     `json:"errorMessage"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TaskStore handles database operations for task rows.
type TaskStore struct {
	db dbinterface.Querier
}

func NewTaskStore(db dbinterface.Querier) *TaskStore {
	return &TaskStore{db: db}
}

const taskColumns = `
	task_id, task_type, name, status, progress, step, detail,
	result, error_message, created_at, updated_at`

func (s *TaskStore) Create(ctx context.Context, t *Task) (*Task, error) {
	if t == nil {
		return nil, errors.New("task is nil")
	}
	if t.TaskID == "" {
		return nil, errors.New("task id is required")
	}
	if t.Status == "" {
		t.Status = TaskStatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, task_type, name, status, progress, step, detail, result, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.TaskID, t.TaskType, t.Name, t.Status, t.Progress, t.Step, t.Detail, t.Result, t.ErrorMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	return s.Get(ctx, t.TaskID)
}

func (s *TaskStore) Get(ctx context.Context, taskID string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+taskColumns+" FROM tasks WHERE task_id = ?", taskID)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// UpdateProgress moves the task into PROGRESS with the given percentage and
// step label.
func (s *TaskStore) UpdateProgress(ctx context.Context, taskID string, progress float64, step string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, progress = ?, step = ?, updated_at = CURRENT_TIMESTAMP
		WHERE task_id = ?
	`, TaskStatusProgress, progress, step, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task progress: %w", err)
	}
	return nil
}

func (s *TaskStore) UpdateDetail(ctx context.Context, taskID, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET detail = ?, updated_at = CURRENT_TIMESTAMP
		WHERE task_id = ?
	`, detail, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task detail: %w", err)
	}
	return nil
}

// Complete finishes the task with the given terminal status and result
// payload.
func (s *TaskStore) Complete(ctx context.Context, taskID, result string, status TaskStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, progress = 100, result = ?, updated_at = CURRENT_TIMESTAMP
		WHERE task_id = ?
	`, status, result, taskID)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return nil
}

func (s *TaskStore) Fail(ctx context.Context, taskID, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE task_id = ?
	`, TaskStatusFailure, errorMessage, taskID)
	if err != nil {
		return fmt.Errorf("failed to fail task: %w", err)
	}
	return nil
}

func (s *TaskStore) ListActive(ctx context.Context) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT"+taskColumns+" FROM tasks WHERE status IN (?, ?) ORDER BY created_at",
		TaskStatusPending, TaskStatusProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (s *TaskStore) ListAll(ctx context.Context, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT"+taskColumns+" FROM tasks ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// FailActive bulk-fails every non-terminal task. Run at startup so rows
// orphaned by a crash do not report progress forever.
func (s *TaskStore) FailActive(ctx context.Context, reason string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE status IN (?, ?)
	`, TaskStatusFailure, reason, TaskStatusPending, TaskStatusProgress)
	if err != nil {
		return 0, fmt.Errorf("failed to fail active tasks: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOld prunes terminal task rows older than the cutoff.
func (s *TaskStore) DeleteOld(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE status IN (?, ?, ?) AND created_at < ?
	`, TaskStatusSuccess, TaskStatusFailure, TaskStatusRevoked, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old tasks: %w", err)
	}
	return res.RowsAffected()
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	err := row.Scan(
		&t.TaskID, &t.TaskType, &t.Name, &t.Status, &t.Progress, &t.Step,
		&t.Detail, &t.Result, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
