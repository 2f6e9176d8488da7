package service

import (
	"context"

	"go.uber.org/zap"

	"task-manager/internal/apperror"
	"task-manager/internal/jobs"
	"task-manager/internal/models"
	"task-manager/internal/notify"
	"task-manager/internal/permission"
	"task-manager/internal/view"
	"task-manager/pkg/logger"
)

type JobService struct {
	queue jobs.Queue
}

func NewJobService(queue jobs.Queue) *JobService {
	return &JobService{queue: queue}
}

// Countdown submits a countdown job and returns without waiting for it.
func (s *JobService) Countdown(ctx context.Context, actor *models.User, body []byte) (jobs.AsyncJob, error) {
	if err := authorize(ctx, permission.Jobs.Authorize(actor, permission.VerbCreate, nil, nil), "job", permission.VerbCreate); err != nil {
		return jobs.AsyncJob{}, err
	}
	p, err := view.DecodeCountdownPayload(body)
	if err != nil {
		return jobs.AsyncJob{}, err
	}
	id, err := s.queue.Submit(ctx, jobs.KindCountdown, notify.CountdownPayload{Seconds: *p.Seconds})
	if err != nil {
		return jobs.AsyncJob{}, apperror.Internal("Could not submit job", err)
	}
	logger.AuditLogger.Info("Countdown submitted", append(logger.Fields(ctx),
		zap.String("job_id", id), zap.Int("seconds", *p.Seconds))...)
	return jobs.AsyncJob{TaskID: id, Status: jobs.StatusStarted}, nil
}

// Get polls a job. Ids never submitted fail with a JobUnknown error.
func (s *JobService) Get(ctx context.Context, actor *models.User, id string) (jobs.AsyncJob, error) {
	if err := authorize(ctx, permission.Jobs.Authorize(actor, permission.VerbRead, nil, nil), "job", permission.VerbRead); err != nil {
		return jobs.AsyncJob{}, err
	}
	job, err := jobs.FromID(ctx, s.queue, id)
	if err != nil {
		return jobs.AsyncJob{}, apperror.Internal("Could not poll job", err)
	}
	if job.Status == jobs.StatusUnknown {
		return jobs.AsyncJob{}, apperror.JobUnknown(id)
	}
	return job, nil
}
