package jobs_test

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager/internal/jobs"
	"task-manager/internal/testutil"
)

var redisClient *redis.Client

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}
	client, purge, err := testutil.StartRedis()
	if err != nil {
		log.Printf("skipping redis integration tests: %v", err)
		os.Exit(m.Run())
	}
	redisClient = client
	code := m.Run()
	purge()
	os.Exit(code)
}

func newQueue(t *testing.T) *jobs.RedisQueue {
	t.Helper()
	if redisClient == nil {
		t.Skip("redis not available")
	}
	require.NoError(t, redisClient.FlushDB(context.Background()).Err())
	return jobs.NewRedisQueue(redisClient, time.Minute)
}

func waitFor(t *testing.T, q *jobs.RedisQueue, id string, want jobs.Status) jobs.AsyncJob {
	t.Helper()
	var job jobs.AsyncJob
	require.Eventually(t, func() bool {
		var err error
		job, err = jobs.FromID(context.Background(), q, id)
		return err == nil && job.Status == want
	}, 5*time.Second, 20*time.Millisecond)
	return job
}

func TestRedisQueue_SubmitAndRun(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	okID, err := q.Submit(ctx, jobs.KindCountdown, map[string]int{"seconds": 0})
	require.NoError(t, err)
	failID, err := q.Submit(ctx, "explode", nil)
	require.NoError(t, err)

	// A submitted job is observable before any worker picks it up.
	job, err := jobs.FromID(ctx, q, okID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusStarted, job.Status)

	w := jobs.NewWorker(q, 2)
	w.Handle(jobs.KindCountdown, func(ctx context.Context, j jobs.Job) (any, error) {
		return "/uploads/test_report-" + j.ID + ".data", nil
	})
	w.Handle("explode", func(context.Context, jobs.Job) (any, error) {
		return nil, errors.New("division by zero")
	})
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	job = waitFor(t, q, okID, jobs.StatusSuccess)
	assert.Equal(t, "/uploads/test_report-"+okID+".data", job.ResultURL())

	job = waitFor(t, q, failID, jobs.StatusFailure)
	assert.Equal(t, []string{"division by zero"}, job.Errors["non_field_errors"])

	cancel()
	<-done

	n, err := redisClient.LLen(context.Background(), "jobs:processing").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisQueue_UnknownID(t *testing.T) {
	q := newQueue(t)
	_, err := q.Poll(context.Background(), "never-submitted")
	assert.ErrorIs(t, err, jobs.ErrUnknownJob)
}

func TestWorker_RequeuesOrphans(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := q.Submit(ctx, jobs.KindCountdown, map[string]int{"seconds": 0})
	require.NoError(t, err)
	// Simulate a worker that crashed after taking the job.
	require.NoError(t, redisClient.RPopLPush(ctx, "jobs:queue", "jobs:processing").Err())

	w := jobs.NewWorker(q, 1)
	w.Handle(jobs.KindCountdown, func(context.Context, jobs.Job) (any, error) { return "done", nil })
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	waitFor(t, q, id, jobs.StatusSuccess)
	cancel()
	<-done
}
