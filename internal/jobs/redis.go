package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"task-manager/pkg/logger"
)

const (
	queueKey      = "jobs:queue"
	processingKey = "jobs:processing"
)

func recordKey(id string) string {
	return "job:" + id
}

// RedisQueue stores jobs in a Redis list and their status in a hash per job.
type RedisQueue struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisQueue(client *redis.Client, resultTTL time.Duration) *RedisQueue {
	if resultTTL <= 0 {
		resultTTL = 24 * time.Hour
	}
	return &RedisQueue{client: client, ttl: resultTTL}
}

// Submit enqueues a job and records it as started so it never polls as unknown.
func (q *RedisQueue) Submit(ctx context.Context, kind string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	job := Job{ID: uuid.NewString(), Kind: kind, Payload: raw}
	envelope, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encoding job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recordKey(job.ID), "status", string(StatusStarted), "kind", kind)
		pipe.Expire(ctx, recordKey(job.ID), q.ttl)
		pipe.RPush(ctx, queueKey, envelope)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("submitting %s job: %w", kind, err)
	}
	logger.FromContext(ctx).Info("Job submitted", zap.String("job_id", job.ID), zap.String("kind", kind))
	return job.ID, nil
}

func (q *RedisQueue) Poll(ctx context.Context, id string) (*Record, error) {
	fields, err := q.client.HGetAll(ctx, recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("polling job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrUnknownJob
	}
	rec := &Record{ID: id, Status: Status(fields["status"]), Error: fields["error"]}
	if r := fields["result"]; r != "" {
		rec.Result = json.RawMessage(r)
	}
	return rec, nil
}

// complete stores the outcome of job and drops raw from the processing list.
// A job without an id (undecodable) is only dropped.
func (q *RedisQueue) complete(ctx context.Context, job Job, raw string, result any, jobErr error) error {
	values := []any{"status", string(StatusSuccess)}
	if jobErr != nil {
		values = []any{"status", string(StatusFailure), "error", jobErr.Error()}
	} else {
		encoded, err := json.Marshal(result)
		if err != nil {
			values = []any{"status", string(StatusFailure), "error", err.Error()}
		} else {
			values = append(values, "result", string(encoded))
		}
	}

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if job.ID != "" {
			pipe.HSet(ctx, recordKey(job.ID), values...)
			pipe.Expire(ctx, recordKey(job.ID), q.ttl)
		}
		pipe.LRem(ctx, processingKey, 1, raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return nil
}

// next blocks up to timeout for a job, moving it to the processing list.
func (q *RedisQueue) next(ctx context.Context, timeout time.Duration) (string, error) {
	return q.client.BRPopLPush(ctx, queueKey, processingKey, timeout).Result()
}

// requeueOrphans moves jobs left in the processing list by a crashed worker
// back onto the queue.
func (q *RedisQueue) requeueOrphans(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.RPopLPush(ctx, processingKey, queueKey).Err()
		if err == redis.Nil {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("requeueing orphaned jobs: %w", err)
		}
		n++
	}
}
