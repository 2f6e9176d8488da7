package service_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"task-manager/internal/models"
	"task-manager/internal/service"
	"task-manager/internal/testutil"
)

type fixture struct {
	store   *testutil.MemoryStore
	queue   *testutil.FakeQueue
	tasks   *service.TaskService
	users   *service.UserService
	tags    *service.TagService
	jobs    *service.JobService
	admin   *models.User
	manager *models.User
	dev     *models.User
	other   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: testutil.NewMemoryStore(), queue: testutil.NewFakeQueue()}
	f.tasks = service.NewTaskService(f.store, f.queue)
	f.users = service.NewUserService(f.store, nil, nil, 5<<20)
	f.tags = service.NewTagService(f.store)
	f.jobs = service.NewJobService(f.queue)

	f.admin = f.user(t, "admin", models.RoleAdmin)
	f.manager = f.user(t, "manager", models.RoleManager)
	f.dev = f.user(t, "dev", models.RoleDeveloper)
	f.other = f.user(t, "other", models.RoleDeveloper)

	for _, title := range []string{"feature", "bug"} {
		require.NoError(t, f.store.CreateTag(context.Background(), &models.Tag{Title: title}))
	}
	return f
}

func (f *fixture) user(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(username+"-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Username: username, Name: username, Surname: "Tester", Email: username + "@test.com",
		Role: role, IsStaff: role == models.RoleAdmin, PasswordHash: string(hash),
	}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

// createTask creates a task authored by the manager with the developer as executor.
func (f *fixture) createTask(t *testing.T) int64 {
	t.Helper()
	body := `{"title":"T","description":"D","deadline":"2023-07-05","priority":"middle","executor":` +
		strconv.FormatInt(f.dev.ID, 10) + `,"tags":["bug"]}`
	obj, err := f.tasks.Create(context.Background(), f.manager, []byte(body))
	require.NoError(t, err)
	return obj["id"].(int64)
}

func (f *fixture) setState(t *testing.T, id int64, states ...string) {
	t.Helper()
	for _, s := range states {
		_, err := f.tasks.Update(context.Background(), f.admin, id, []byte(`{"state":"`+s+`"}`), false)
		require.NoError(t, err)
	}
}
