package service_test

import (
	"bytes"
	"context"
	"database/sql"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager/internal/apperror"
	"task-manager/internal/models"
	"task-manager/internal/service"
	"task-manager/internal/storage"
	"task-manager/internal/view"
)

func jsonInput(body string) service.UserInput {
	return service.UserInput{Body: []byte(body)}
}

func avatarForm(t *testing.T, filename string, size int, values map[string]string) *multipart.Form {
	t.Helper()
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("avatar_picture", filename)
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte{0x1}, size))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest("PATCH", "/", &b)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm
}

func TestUserService_StaffPromotesOtherUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	obj, err := f.users.Update(ctx, f.admin, f.dev.ID, jsonInput(`{"role":"admin"}`), false)
	require.NoError(t, err)
	assert.Equal(t, view.Object{"role": models.RoleAdmin}, obj)

	got, err := f.users.Get(ctx, f.dev, f.dev.ID)
	require.NoError(t, err)
	assert.Equal(t, true, got["is_staff"])

	stored, err := f.store.GetUser(ctx, f.dev.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsStaff)
}

func TestUserService_FieldSets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Update(ctx, f.admin, f.dev.ID, jsonInput(`{"name":"x"}`), false)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	_, err = f.users.Update(ctx, f.dev, f.dev.ID, jsonInput(`{"role":"admin"}`), false)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	_, err = f.users.Update(ctx, f.dev, f.other.ID, jsonInput(`{"name":"x"}`), false)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	obj, err := f.users.Update(ctx, f.dev, f.dev.ID, jsonInput(`{"name":"Dana","email":"dana@test.com"}`), false)
	require.NoError(t, err)
	assert.Equal(t, "Dana", obj["name"])
	assert.Equal(t, "dana@test.com", obj["email"])
	assert.Equal(t, models.RoleDeveloper, obj["role"])

	obj, err = f.users.Update(ctx, f.admin, f.admin.ID, jsonInput(`{"role":"manager","surname":"Root"}`), false)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, obj["role"])
	assert.Equal(t, true, obj["is_staff"])

	_, err = f.users.Update(ctx, f.dev, f.dev.ID, jsonInput(`{"username":"manager"}`), false)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "username")

	_, err = f.users.Update(ctx, nil, f.dev.ID, jsonInput(`{}`), false)
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))
}

func TestUserService_CreateIsNeverAllowed(t *testing.T) {
	f := newFixture(t)
	assert.True(t, apperror.Is(f.users.Create(context.Background(), f.admin), apperror.KindForbidden))
	assert.True(t, apperror.Is(f.users.Create(context.Background(), nil), apperror.KindUnauthenticated))
}

func TestUserService_Avatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()
	files, err := storage.NewLocal(dir, "")
	require.NoError(t, err)
	users := service.NewUserService(f.store, nil, files, 100)

	_, err = users.Update(ctx, f.dev, f.dev.ID, service.UserInput{Form: avatarForm(t, "me.gif", 10, nil)}, false)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = users.Update(ctx, f.dev, f.dev.ID, service.UserInput{Form: avatarForm(t, "me.png", 101, nil)}, false)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)

	obj, err := users.Update(ctx, f.dev, f.dev.ID, service.UserInput{Form: avatarForm(t, "me.png", 10, map[string]string{"name": "Dev"})}, false)
	require.NoError(t, err)
	url, ok := obj["avatar_picture"].(string)
	require.True(t, ok)
	first := filepath.Join(dir, storage.NameFromURL(url))
	assert.FileExists(t, first)

	// Replacing the avatar removes the previous file.
	obj, err = users.Update(ctx, f.dev, f.dev.ID, service.UserInput{Form: avatarForm(t, "new.jpg", 10, nil)}, false)
	require.NoError(t, err)
	second := filepath.Join(dir, storage.NameFromURL(obj["avatar_picture"].(string)))
	assert.NoFileExists(t, first)
	assert.FileExists(t, second)

	obj, err = users.Update(ctx, f.dev, f.dev.ID, jsonInput(`{"delete_avatar":true}`), false)
	require.NoError(t, err)
	assert.Nil(t, obj["avatar_picture"])
	assert.NoFileExists(t, second)

	stored, err := f.store.GetUser(ctx, f.dev.ID)
	require.NoError(t, err)
	assert.Equal(t, sql.NullString{}, stored.Avatar)
}

func TestUserService_AvatarRolledBackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()
	files, err := storage.NewLocal(dir, "")
	require.NoError(t, err)
	users := service.NewUserService(f.store, nil, files, 100)

	form := avatarForm(t, "me.png", 10, map[string]string{"username": "manager"})
	_, err = users.Update(ctx, f.dev, f.dev.ID, service.UserInput{Form: form}, false)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestUserService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createTask(t)

	assert.True(t, apperror.Is(f.users.Delete(ctx, f.manager, f.dev.ID), apperror.KindForbidden))
	require.NoError(t, f.users.Delete(ctx, f.admin, f.dev.ID))
	assert.True(t, apperror.Is(f.users.Delete(ctx, f.admin, f.dev.ID), apperror.KindNotFound))

	task, err := f.store.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, task.ExecutorID)
	require.NotNil(t, task.AuthorID)
}

func TestUserService_ListAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	users, err := f.users.List(ctx, f.dev)
	require.NoError(t, err)
	require.Len(t, users, 4)
	assert.Equal(t, "admin", users[0]["username"])
	assert.NotContains(t, users[0], "password")

	_, err = f.users.Get(ctx, f.dev, 999)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
