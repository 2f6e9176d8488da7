package repository

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager/internal/models"
	"task-manager/internal/workflow"
)

var testDB *sql.DB

// TestMain starts a throwaway PostgreSQL container. Integration tests are
// skipped with -short or when no Docker daemon is reachable.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	pool, err := dockertest.NewPool("")
	if err != nil || pool.Client.Ping() != nil {
		log.Println("docker not available, skipping postgres integration tests")
		os.Exit(m.Run())
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=tasks",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=tasks_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start postgres: %v", err)
	}
	_ = resource.Expire(120)

	dsn := fmt.Sprintf("host=localhost port=%s user=tasks password=secret dbname=tasks_test sslmode=disable",
		resource.GetPort("5432/tcp"))
	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return err
		}
		testDB = db
		return nil
	}); err != nil {
		log.Fatalf("Could not connect to postgres: %v", err)
	}

	code := m.Run()

	testDB.Close()
	if err := pool.Purge(resource); err != nil {
		log.Printf("Could not purge postgres: %v", err)
	}
	os.Exit(code)
}

func newStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres not available")
	}
	ctx := context.Background()
	require.NoError(t, DeleteAllTable(ctx, testDB))
	require.NoError(t, CreateTableIfNotExists(ctx, testDB))
	return NewPostgresStore(testDB)
}

func seedUser(t *testing.T, s *PostgresStore, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: username, Name: username, Email: username + "@test.com", Role: role, PasswordHash: "x"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestPostgresStore_Users(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	dev := seedUser(t, s, "dev", models.RoleDeveloper)
	assert.NotZero(t, dev.ID)

	got, err := s.GetUserByUsername(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDeveloper, got.Role)
	assert.False(t, got.Avatar.Valid)

	dup := &models.User{Username: "dev", Role: models.RoleDeveloper, PasswordHash: "x"}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrDuplicate)

	bad := &models.User{Username: "bad", Role: models.Role("root"), PasswordHash: "x"}
	assert.Error(t, s.CreateUser(ctx, bad))

	got.Role = models.RoleAdmin
	got.IsStaff = true
	got.Avatar = sql.NullString{String: "/uploads/a.png", Valid: true}
	require.NoError(t, s.UpdateUser(ctx, got))

	again, err := s.GetUser(ctx, dev.ID)
	require.NoError(t, err)
	assert.True(t, again.IsStaff)
	assert.Equal(t, "/uploads/a.png", again.Avatar.String)

	_, err = s.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, 9999), ErrNotFound)
}

func TestPostgresStore_TasksAndTags(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	manager := seedUser(t, s, "manager", models.RoleManager)
	dev := seedUser(t, s, "dev", models.RoleDeveloper)

	feature := &models.Tag{Title: "feature"}
	bug := &models.Tag{Title: "bug"}
	require.NoError(t, s.CreateTag(ctx, feature))
	require.NoError(t, s.CreateTag(ctx, bug))

	tags, missing, err := ResolveTags(ctx, s, []string{"bug", "feature", "nope"})
	require.NoError(t, err)
	assert.Equal(t, []string{"nope"}, missing)

	deadline, _ := models.ParseDate("2023-07-05")
	task := &models.Task{
		Title: "T", Description: "D", Deadline: deadline,
		State: workflow.StateNew, Priority: models.PriorityMiddle,
		AuthorID: &manager.ID, ExecutorID: &dev.ID, Tags: tags,
	}
	require.NoError(t, s.CreateTask(ctx, task))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bug", "feature"}, got.TagTitles())
	assert.Equal(t, "2023-07-05", got.Deadline.String())

	list, err := s.ListTasks(ctx, models.TaskFilter{State: "NEW TASK", Tags: []string{"bug"}, Executor: "DEV@"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = s.ListTasks(ctx, models.TaskFilter{Author: "dev"})
	require.NoError(t, err)
	assert.Empty(t, list)

	other := &models.Task{
		Title: "T2", Description: "D2", Deadline: deadline,
		State: workflow.StateNew, Priority: models.PriorityLow,
		AuthorID: &manager.ID, Tags: []models.Tag{*bug},
	}
	require.NoError(t, s.CreateTask(ctx, other))
	unused := &models.Tag{Title: "unused"}
	require.NoError(t, s.CreateTag(ctx, unused))

	byTag, err := s.ListTasksByTags(ctx, []int64{feature.ID, bug.ID, unused.ID})
	require.NoError(t, err)
	require.Len(t, byTag[feature.ID], 1)
	assert.Equal(t, []string{"bug", "feature"}, byTag[feature.ID][0].TagTitles())
	require.Len(t, byTag[bug.ID], 2)
	assert.Equal(t, task.ID, byTag[bug.ID][0].ID)
	assert.Equal(t, other.ID, byTag[bug.ID][1].ID)
	assert.Equal(t, []string{"bug", "feature"}, byTag[bug.ID][0].TagTitles())
	assert.NotContains(t, byTag, unused.ID)

	none, err := s.ListTasksByTags(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	err = s.InTx(ctx, func(q Querier) error {
		locked, err := q.LockTask(ctx, task.ID)
		if err != nil {
			return err
		}
		locked.State = workflow.StateInDevelopment
		locked.Tags = []models.Tag{*feature}
		return q.UpdateTask(ctx, locked)
	})
	require.NoError(t, err)

	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateInDevelopment, got.State)
	assert.Equal(t, []string{"feature"}, got.TagTitles())

	rollback := fmt.Errorf("boom")
	err = s.InTx(ctx, func(q Querier) error {
		locked, err := q.LockTask(ctx, task.ID)
		if err != nil {
			return err
		}
		locked.Title = "changed"
		if err := q.UpdateTask(ctx, locked); err != nil {
			return err
		}
		return rollback
	})
	assert.ErrorIs(t, err, rollback)
	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)

	// Deleting a user clears references.
	require.NoError(t, s.DeleteUser(ctx, dev.ID))
	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ExecutorID)

	// Deleting a tag only drops the association.
	require.NoError(t, s.DeleteTag(ctx, feature.ID))
	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	_, err = s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetTag(ctx, bug.ID)
	assert.NoError(t, err)
}

func TestCreateAdminUser(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, CreateAdminUser(ctx, testDB, "admin", "admin@mail.com", "admin"))
	require.NoError(t, CreateAdminUser(ctx, testDB, "admin", "admin@mail.com", "admin"))

	admin, err := s.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.Staff())
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Error(t, CreateAdminUser(ctx, testDB, "", "", ""))
}
