package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completion struct {
	job    Job
	result any
	err    error
}

type fakeSource struct {
	mu        sync.Mutex
	queue     []string
	orphans   int
	completed chan completion
}

func newFakeSource(raw ...string) *fakeSource {
	return &fakeSource{queue: raw, completed: make(chan completion, 10)}
}

func (f *fakeSource) next(ctx context.Context, timeout time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
		return "", redis.Nil
	}
	raw := f.queue[0]
	f.queue = f.queue[1:]
	return raw, nil
}

func (f *fakeSource) complete(_ context.Context, job Job, _ string, result any, jobErr error) error {
	f.completed <- completion{job: job, result: result, err: jobErr}
	return nil
}

func (f *fakeSource) requeueOrphans(context.Context) (int, error) {
	return f.orphans, nil
}

func encodeJob(t *testing.T, id, kind string, payload any) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	envelope, err := json.Marshal(Job{ID: id, Kind: kind, Payload: raw})
	require.NoError(t, err)
	return string(envelope)
}

func runWorker(t *testing.T, w *Worker, src *fakeSource, n int) []completion {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	var out []completion
	for i := 0; i < n; i++ {
		select {
		case c := <-src.completed:
			out = append(out, c)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
	}
	cancel()
	<-done
	return out
}

func TestWorker_RunsRegisteredHandler(t *testing.T) {
	src := newFakeSource(encodeJob(t, "1", KindCountdown, map[string]int{"seconds": 0}))
	w := newWorker(src, 2)
	w.Handle(KindCountdown, func(ctx context.Context, job Job) (any, error) {
		var p struct{ Seconds int }
		assert.NoError(t, json.Unmarshal(job.Payload, &p))
		return "/uploads/test_report-" + job.ID + ".data", nil
	})

	got := runWorker(t, w, src, 1)
	assert.Equal(t, "1", got[0].job.ID)
	assert.NoError(t, got[0].err)
	assert.Equal(t, "/uploads/test_report-1.data", got[0].result)
}

func TestWorker_CapturesFailures(t *testing.T) {
	src := newFakeSource(
		encodeJob(t, "fail", "boom", nil),
		encodeJob(t, "panic", "panic", nil),
		encodeJob(t, "missing", "nobody-handles-this", nil),
		"not json",
	)
	w := newWorker(src, 1)
	w.Handle("boom", func(context.Context, Job) (any, error) { return nil, errors.New("smtp down") })
	w.Handle("panic", func(context.Context, Job) (any, error) { panic("bad") })

	got := runWorker(t, w, src, 4)
	byID := map[string]completion{}
	for _, c := range got {
		byID[c.job.ID] = c
	}
	assert.EqualError(t, byID["fail"].err, "smtp down")
	assert.Contains(t, byID["panic"].err.Error(), "panicked")
	assert.Contains(t, byID["missing"].err.Error(), "no handler")
	assert.Error(t, byID[""].err)
}

type fakePoller map[string]*Record

func (f fakePoller) Poll(_ context.Context, id string) (*Record, error) {
	rec, ok := f[id]
	if !ok {
		return nil, ErrUnknownJob
	}
	return rec, nil
}

func TestFromID(t *testing.T) {
	p := fakePoller{
		"s":  {ID: "s", Status: StatusStarted},
		"ok": {ID: "ok", Status: StatusSuccess, Result: json.RawMessage(`"/uploads/r.data"`)},
		"f":  {ID: "f", Status: StatusFailure, Error: "division by zero"},
	}
	ctx := context.Background()

	job, err := FromID(ctx, p, "nope")
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, job.Status)

	job, err = FromID(ctx, p, "s")
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, job.Status)
	assert.Empty(t, job.ResultURL())

	job, err = FromID(ctx, p, "ok")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, job.Status)
	assert.Equal(t, "/uploads/r.data", job.ResultURL())

	job, err = FromID(ctx, p, "f")
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, job.Status)
	assert.Equal(t, []string{"division by zero"}, job.Errors["non_field_errors"])
}
