// Package testutil provides in-memory and container-backed collaborators for tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"task-manager/internal/models"
	"task-manager/internal/repository"
)

type storedTask struct {
	task   models.Task
	tagIDs []int64
}

type memState struct {
	users  map[int64]models.User
	tasks  map[int64]storedTask
	tags   map[int64]models.Tag
	nextID int64
}

func (s memState) clone() memState {
	out := memState{
		users:  make(map[int64]models.User, len(s.users)),
		tasks:  make(map[int64]storedTask, len(s.tasks)),
		tags:   make(map[int64]models.Tag, len(s.tags)),
		nextID: s.nextID,
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.tasks {
		v.tagIDs = append([]int64(nil), v.tagIDs...)
		out.tasks[k] = v
	}
	for k, v := range s.tags {
		out.tags[k] = v
	}
	return out
}

// MemoryStore is a repository.Store kept in memory. Transactions are
// serialised and roll back by restoring a snapshot.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   memState
}

var _ repository.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: memState{
		users: map[int64]models.User{},
		tasks: map[int64]storedTask{},
		tags:  map[int64]models.Tag{},
	}}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(q repository.Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) id() int64 {
	s.st.nextID++
	return s.st.nextID
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) LockUser(ctx context.Context, id int64) (*models.User, error) {
	return s.GetUser(ctx, id)
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *MemoryStore) sortedUsers(keep func(models.User) bool) []models.User {
	out := []models.User{}
	for _, u := range s.st.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) ListUsers(context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedUsers(func(models.User) bool { return true }), nil
}

func (s *MemoryStore) ListUsersByID(_ context.Context, ids []int64) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return s.sortedUsers(func(u models.User) bool { return want[u.ID] }), nil
}

func (s *MemoryStore) usernameTaken(username string, except int64) bool {
	for _, u := range s.st.users {
		if u.Username == username && u.ID != except {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usernameTaken(u.Username, 0) {
		return repository.ErrDuplicate
	}
	u.ID = s.id()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	s.st.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	if s.usernameTaken(u.Username, u.ID) {
		return repository.ErrDuplicate
	}
	u.UpdatedAt = time.Now()
	s.st.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.st.users, id)
	for k, st := range s.st.tasks {
		if st.task.AuthorID != nil && *st.task.AuthorID == id {
			st.task.AuthorID = nil
		}
		if st.task.ExecutorID != nil && *st.task.ExecutorID == id {
			st.task.ExecutorID = nil
		}
		s.st.tasks[k] = st
	}
	return nil
}

func (s *MemoryStore) materialize(st storedTask) models.Task {
	t := st.task
	t.Tags = []models.Tag{}
	for _, id := range st.tagIDs {
		if tag, ok := s.st.tags[id]; ok {
			t.Tags = append(t.Tags, tag)
		}
	}
	return t
}

func (s *MemoryStore) GetTask(_ context.Context, id int64) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.st.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t := s.materialize(st)
	return &t, nil
}

func (s *MemoryStore) LockTask(ctx context.Context, id int64) (*models.Task, error) {
	return s.GetTask(ctx, id)
}

func containsFold(u models.User, needle string) bool {
	needle = strings.ToLower(needle)
	for _, v := range []string{u.Name, u.Surname, u.Email} {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) userMatches(id *int64, needle string) bool {
	if id == nil {
		return false
	}
	u, ok := s.st.users[*id]
	return ok && containsFold(u, needle)
}

func (s *MemoryStore) filterTasks(keep func(models.Task) bool) []models.Task {
	out := []models.Task{}
	for _, st := range s.st.tasks {
		t := s.materialize(st)
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) ListTasks(_ context.Context, f models.TaskFilter) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterTasks(func(t models.Task) bool {
		if f.State != "" && !strings.EqualFold(string(t.State), f.State) {
			return false
		}
		if len(f.Tags) > 0 {
			hit := false
			for _, title := range t.TagTitles() {
				for _, want := range f.Tags {
					hit = hit || title == want
				}
			}
			if !hit {
				return false
			}
		}
		if f.Author != "" && !s.userMatches(t.AuthorID, f.Author) {
			return false
		}
		if f.Executor != "" && !s.userMatches(t.ExecutorID, f.Executor) {
			return false
		}
		if f.ExecutorID != nil && (t.ExecutorID == nil || *t.ExecutorID != *f.ExecutorID) {
			return false
		}
		return true
	}), nil
}

func (s *MemoryStore) ListTasksByTags(_ context.Context, tagIDs []int64) (map[int64][]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[int64]bool, len(tagIDs))
	for _, id := range tagIDs {
		want[id] = true
	}
	out := map[int64][]models.Task{}
	for _, t := range s.filterTasks(func(models.Task) bool { return true }) {
		seen := map[int64]bool{}
		for _, tag := range t.Tags {
			if want[tag.ID] && !seen[tag.ID] {
				seen[tag.ID] = true
				out[tag.ID] = append(out[tag.ID], t)
			}
		}
	}
	return out, nil
}

func tagIDs(tags []models.Tag) []int64 {
	ids := make([]int64, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}

func (s *MemoryStore) CreateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	t.CreatedAt = time.Now()
	t.EditedAt = t.CreatedAt
	stored := *t
	stored.Tags = nil
	s.st.tasks[t.ID] = storedTask{task: stored, tagIDs: tagIDs(t.Tags)}
	return nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.tasks[t.ID]; !ok {
		return repository.ErrNotFound
	}
	t.EditedAt = time.Now()
	stored := *t
	stored.Tags = nil
	s.st.tasks[t.ID] = storedTask{task: stored, tagIDs: tagIDs(t.Tags)}
	return nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.st.tasks, id)
	return nil
}

func (s *MemoryStore) GetTag(_ context.Context, id int64) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag, ok := s.st.tags[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tag, nil
}

func (s *MemoryStore) LockTag(ctx context.Context, id int64) (*models.Tag, error) {
	return s.GetTag(ctx, id)
}

func (s *MemoryStore) sortedTags(keep func(models.Tag) bool) []models.Tag {
	out := []models.Tag{}
	for _, tag := range s.st.tags {
		if keep(tag) {
			out = append(out, tag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) ListTags(context.Context) ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedTags(func(models.Tag) bool { return true }), nil
}

func (s *MemoryStore) ListTagsByTitle(_ context.Context, titles []string) ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, t := range titles {
		want[t] = true
	}
	seen := map[string]bool{}
	out := []models.Tag{}
	for _, tag := range s.sortedTags(func(tag models.Tag) bool { return want[tag.Title] }) {
		if !seen[tag.Title] {
			seen[tag.Title] = true
			out = append(out, tag)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateTag(_ context.Context, tag *models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag.ID = s.id()
	s.st.tags[tag.ID] = *tag
	return nil
}

func (s *MemoryStore) UpdateTag(_ context.Context, tag *models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.tags[tag.ID]; !ok {
		return repository.ErrNotFound
	}
	s.st.tags[tag.ID] = *tag
	return nil
}

func (s *MemoryStore) DeleteTag(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.tags[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.st.tags, id)
	return nil
}
