package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"task-manager/internal/jobs"
	"task-manager/internal/models"
	"task-manager/internal/repository"
	"task-manager/internal/storage"
	"task-manager/pkg/logger"
)

type AssignPayload struct {
	TaskID int64 `json:"task_id"`
}

type CountdownPayload struct {
	Seconds int `json:"seconds"`
}

// Handlers holds the dependencies of the job handlers.
type Handlers struct {
	Store   repository.Querier
	Mailer  Mailer
	Storage storage.Storage
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration)
}

// Register installs every handler on w.
func (h *Handlers) Register(w *jobs.Worker) {
	w.Handle(jobs.KindAssignNotification, h.AssignNotification)
	w.Handle(jobs.KindCountdown, h.Countdown)
}

// AssignNotification mails the current executor of the task.
func (h *Handlers) AssignNotification(ctx context.Context, job jobs.Job) (any, error) {
	var p AssignPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	task, err := h.Store.GetTask(ctx, p.TaskID)
	if err != nil {
		return nil, fmt.Errorf("loading task %d: %w", p.TaskID, err)
	}
	if task.ExecutorID == nil {
		logger.FromContext(ctx).Info("Task has no executor, skipping notification", zap.Int64("task_id", task.ID))
		return nil, nil
	}
	executor, err := h.Store.GetUser(ctx, *task.ExecutorID)
	if err != nil {
		return nil, fmt.Errorf("loading executor %d: %w", *task.ExecutorID, err)
	}
	if executor.Email == "" {
		return nil, errors.New("executor has no e-mail address")
	}

	var author *models.User
	if task.AuthorID != nil {
		if a, err := h.Store.GetUser(ctx, *task.AuthorID); err == nil {
			author = a
		}
	}
	html, err := renderNotification(task, author)
	if err != nil {
		return nil, err
	}
	if err := h.Mailer.Send(ctx, Message{To: []string{executor.Email}, Subject: AssignSubject, HTML: html}); err != nil {
		return nil, err
	}
	return nil, nil
}

// Countdown waits the requested seconds then stores a report and returns its URL.
func (h *Handlers) Countdown(ctx context.Context, job jobs.Job) (any, error) {
	var p CountdownPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	if p.Seconds < 0 {
		return nil, fmt.Errorf("seconds must not be negative, got %d", p.Seconds)
	}
	sleep := h.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	sleep(ctx, time.Duration(p.Seconds)*time.Second)

	url, err := h.Storage.Save(ctx, storage.ReportName(job.ID), bytes.NewReader([]byte("test data")))
	if err != nil {
		return nil, err
	}
	return url, nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
