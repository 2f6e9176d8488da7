// Package jobs submits background work to a durable Redis queue and reports
// job status by id.
package jobs

import (
	"context"
	"encoding/json"
	"errors"

	"task-manager/internal/apperror"
)

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusStarted Status = "started"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Job kinds handled by the worker.
const (
	KindCountdown          = "countdown"
	KindAssignNotification = "assign_notification"
)

var ErrUnknownJob = errors.New("unknown job")

// Job is a queued unit of work.
type Job struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Record is what the status store knows about a job.
type Record struct {
	ID     string
	Status Status
	Result json.RawMessage
	Error  string
}

type Submitter interface {
	Submit(ctx context.Context, kind string, payload any) (string, error)
}

type Poller interface {
	Poll(ctx context.Context, id string) (*Record, error)
}

type Queue interface {
	Submitter
	Poller
}

// AsyncJob is the client-facing view of a job.
type AsyncJob struct {
	TaskID string               `json:"task_id"`
	Status Status               `json:"status"`
	Errors apperror.FieldErrors `json:"errors,omitempty"`
	Result json.RawMessage      `json:"result,omitempty"`
}

// FromID polls id and maps the stored record to an AsyncJob. Ids the store
// has never seen come back with StatusUnknown.
func FromID(ctx context.Context, p Poller, id string) (AsyncJob, error) {
	rec, err := p.Poll(ctx, id)
	if errors.Is(err, ErrUnknownJob) {
		return AsyncJob{TaskID: id, Status: StatusUnknown}, nil
	}
	if err != nil {
		return AsyncJob{}, err
	}
	switch rec.Status {
	case StatusFailure:
		return AsyncJob{
			TaskID: id,
			Status: StatusFailure,
			Errors: apperror.FieldErrors{apperror.NonField: {rec.Error}},
		}, nil
	case StatusSuccess:
		return AsyncJob{TaskID: id, Status: StatusSuccess, Result: rec.Result}, nil
	case StatusUnknown, "":
		return AsyncJob{TaskID: id, Status: StatusUnknown}, nil
	}
	return AsyncJob{TaskID: id, Status: StatusStarted}, nil
}

// ResultURL returns the result when it is a JSON string, as countdown results are.
func (j AsyncJob) ResultURL() string {
	var s string
	if len(j.Result) == 0 || json.Unmarshal(j.Result, &s) != nil {
		return ""
	}
	return s
}
