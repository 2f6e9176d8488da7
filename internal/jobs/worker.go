package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"task-manager/pkg/logger"
)

// Handler executes one job and returns a JSON-encodable result.
type Handler func(ctx context.Context, job Job) (any, error)

type source interface {
	next(ctx context.Context, timeout time.Duration) (string, error)
	complete(ctx context.Context, job Job, raw string, result any, jobErr error) error
	requeueOrphans(ctx context.Context) (int, error)
}

// Worker pulls jobs from the queue and runs the handler registered for their kind.
type Worker struct {
	src         source
	handlers    map[string]Handler
	concurrency int
	pollTimeout time.Duration
	retryDelay  time.Duration
}

func NewWorker(q *RedisQueue, concurrency int) *Worker {
	return newWorker(q, concurrency)
}

func newWorker(src source, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		src:         src,
		handlers:    map[string]Handler{},
		concurrency: concurrency,
		pollTimeout: 5 * time.Second,
		retryDelay:  time.Second,
	}
}

// Handle registers h for jobs of kind.
func (w *Worker) Handle(kind string, h Handler) {
	w.handlers[kind] = h
}

// Run processes jobs until ctx is cancelled. Jobs already running are
// finished before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	n, err := w.src.requeueOrphans(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.SystemLogger.Warn("Requeued orphaned jobs", zap.Int("count", n))
	}

	logger.SystemLogger.Info("Worker started", zap.Int("concurrency", w.concurrency))
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}
	wg.Wait()
	logger.SystemLogger.Info("Worker stopped")
	return nil
}

func (w *Worker) loop(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		raw, err := w.src.next(ctx, w.pollTimeout)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.ErrorLogger.Error("Fetching job failed", zap.Int("slot", slot), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.retryDelay):
			}
			continue
		}
		w.process(context.WithoutCancel(ctx), raw)
	}
}

func (w *Worker) process(ctx context.Context, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		logger.ErrorLogger.Error("Dropping undecodable job", zap.String("raw", raw), zap.Error(err))
		if err := w.src.complete(ctx, Job{}, raw, nil, err); err != nil {
			logger.ErrorLogger.Error("Dropping job failed", zap.Error(err))
		}
		return
	}

	ctx = logger.WithFields(ctx, zap.String("job_id", job.ID), zap.String("kind", job.Kind))
	log := logger.FromContext(ctx)
	start := time.Now()

	result, err := w.execute(ctx, job)
	if err != nil {
		log.Warn("Job failed", zap.Error(err), zap.Duration("total_time", time.Since(start)))
	} else {
		log.Info("Job succeeded", zap.Duration("total_time", time.Since(start)))
	}
	logger.SystemLogger.Info("Job finished", append(logger.Fields(ctx), zap.Bool("success", err == nil))...)

	if err := w.src.complete(ctx, job, raw, result, err); err != nil {
		logger.ErrorLogger.Error("Storing job result failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (w *Worker) execute(ctx context.Context, job Job) (result any, err error) {
	h, ok := w.handlers[job.Kind]
	if !ok {
		return nil, fmt.Errorf("no handler registered for %q", job.Kind)
	}
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorLogger.Error("Job panicked", zap.String("job_id", job.ID),
				zap.Any("panic", r), zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return h(ctx, job)
}
