// Package repository is the entity store for users, tasks and tags.
package repository

import (
	"context"
	"errors"

	"task-manager/internal/models"
)

var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique column (username) already holds the value.
var ErrDuplicate = errors.New("duplicate value")

// Querier is the set of store operations available inside and outside a transaction.
// Lock* variants take a row lock that is held until the surrounding transaction ends.
type Querier interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	LockUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListUsersByID(ctx context.Context, ids []int64) ([]models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id int64) error

	GetTask(ctx context.Context, id int64) (*models.Task, error)
	LockTask(ctx context.Context, id int64) (*models.Task, error)
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	// ListTasksByTags maps each tag id to the tasks carrying it; tags without tasks are absent.
	ListTasksByTags(ctx context.Context, tagIDs []int64) (map[int64][]models.Task, error)
	CreateTask(ctx context.Context, t *models.Task) error
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id int64) error

	GetTag(ctx context.Context, id int64) (*models.Tag, error)
	LockTag(ctx context.Context, id int64) (*models.Tag, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
	// ListTagsByTitle returns one tag per distinct title found, lowest id first.
	ListTagsByTitle(ctx context.Context, titles []string) ([]models.Tag, error)
	CreateTag(ctx context.Context, tag *models.Tag) error
	UpdateTag(ctx context.Context, tag *models.Tag) error
	DeleteTag(ctx context.Context, id int64) error
}

// Store runs queries directly or inside a transaction. fn's error rolls the
// transaction back; a nil return commits it.
type Store interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// ResolveTags maps titles to tags in the given order. Unknown titles are
// returned in missing.
func ResolveTags(ctx context.Context, q Querier, titles []string) (tags []models.Tag, missing []string, err error) {
	if len(titles) == 0 {
		return []models.Tag{}, nil, nil
	}
	found, err := q.ListTagsByTitle(ctx, titles)
	if err != nil {
		return nil, nil, err
	}
	byTitle := make(map[string]models.Tag, len(found))
	for _, t := range found {
		if _, ok := byTitle[t.Title]; !ok {
			byTitle[t.Title] = t
		}
	}
	seen := make(map[string]bool, len(titles))
	tags = make([]models.Tag, 0, len(titles))
	for _, title := range titles {
		if seen[title] {
			continue
		}
		seen[title] = true
		t, ok := byTitle[title]
		if !ok {
			missing = append(missing, title)
			continue
		}
		tags = append(tags, t)
	}
	return tags, missing, nil
}
