package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"task-manager/internal/jobs"
	"task-manager/internal/notify"
)

// Submission is a job recorded by FakeQueue.
type Submission struct {
	ID      string
	Kind    string
	Payload json.RawMessage
}

// FakeQueue records submissions and serves polls from an in-memory map.
type FakeQueue struct {
	mu        sync.Mutex
	seq       int
	records   map[string]*jobs.Record
	submitted []Submission
	// SubmitErr, when set, is returned by Submit.
	SubmitErr error
}

var _ jobs.Queue = (*FakeQueue)(nil)

func NewFakeQueue() *FakeQueue {
	return &FakeQueue{records: map[string]*jobs.Record{}}
}

func (q *FakeQueue) Submit(_ context.Context, kind string, payload any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.SubmitErr != nil {
		return "", q.SubmitErr
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	q.seq++
	id := fmt.Sprintf("job-%d", q.seq)
	q.records[id] = &jobs.Record{ID: id, Status: jobs.StatusStarted}
	q.submitted = append(q.submitted, Submission{ID: id, Kind: kind, Payload: raw})
	return id, nil
}

func (q *FakeQueue) Poll(_ context.Context, id string) (*jobs.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[id]
	if !ok {
		return nil, jobs.ErrUnknownJob
	}
	cp := *rec
	return &cp, nil
}

// Complete marks id finished with result, or failed when err is non-nil.
func (q *FakeQueue) Complete(id string, result any, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec := &jobs.Record{ID: id, Status: jobs.StatusSuccess}
	if err != nil {
		rec.Status = jobs.StatusFailure
		rec.Error = err.Error()
	} else if result != nil {
		rec.Result, _ = json.Marshal(result)
	}
	q.records[id] = rec
}

// Submitted returns the submissions of kind, or all when kind is empty.
func (q *FakeQueue) Submitted(kind string) []Submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Submission
	for _, s := range q.submitted {
		if kind == "" || s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// FakeMailer collects sent messages.
type FakeMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	Err  error
}

func (m *FakeMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *FakeMailer) Sent() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Message(nil), m.sent...)
}
