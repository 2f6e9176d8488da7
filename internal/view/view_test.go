package view

import (
	"bytes"
	"database/sql"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager/internal/apperror"
	"task-manager/internal/models"
	"task-manager/internal/permission"
	"task-manager/internal/workflow"
)

func ptr(v int64) *int64 { return &v }

var (
	admin     = &models.User{ID: 1, Username: "admin", Role: models.RoleAdmin, IsStaff: true}
	manager   = &models.User{ID: 2, Username: "manager", Role: models.RoleManager, Email: "m@test.com"}
	developer = &models.User{ID: 3, Username: "dev", Role: models.RoleDeveloper, Email: "d@test.com"}
)

func TestResolveTaskContract_Create(t *testing.T) {
	c := ResolveTaskContract(manager, permission.VerbCreate, nil)

	assert.Equal(t, TaskCreate, c.Variant)
	require.NotNil(t, c.Defaults.AuthorID)
	assert.Equal(t, manager.ID, *c.Defaults.AuthorID)
	assert.True(t, c.Defaults.ForceState)
	assert.Equal(t, workflow.StateNew, c.Defaults.State)
	assert.False(t, c.Writable.Has("author"))
	assert.Equal(t, []string{"deadline", "description", "priority", "title"}, c.Required.Names())
	assert.False(t, c.NestedRelations)
}

func TestResolveTaskContract_Update(t *testing.T) {
	task := &models.Task{AuthorID: ptr(manager.ID), ExecutorID: ptr(developer.ID)}

	tests := []struct {
		actor    *models.User
		variant  Variant
		writable []string
		required []string
	}{
		{admin, TaskStaffUpdate, []string{"deadline", "description", "executor", "priority", "state", "tags", "title"}, []string{"deadline", "description", "priority", "title"}},
		{manager, TaskAuthor, []string{"deadline", "description", "executor", "priority", "state", "tags"}, []string{"deadline", "description", "priority"}},
		{developer, TaskExecutor, []string{"state", "tags"}, []string{}},
		{&models.User{ID: 99, Role: models.RoleDeveloper}, TaskNone, []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			c := ResolveTaskContract(tt.actor, permission.VerbUpdate, task)
			assert.Equal(t, tt.variant, c.Variant)
			assert.Equal(t, tt.writable, c.Writable.Names())
			assert.Equal(t, tt.required, c.Required.Names())
			if tt.variant != TaskNone {
				assert.True(t, c.Defaults.SetAuthor)
				assert.Equal(t, task.AuthorID, c.Defaults.AuthorID)
				assert.False(t, c.Defaults.ForceState)
			}
		})
	}
}

func TestResolveUserContract(t *testing.T) {
	assert.Equal(t, UserStaffSelf, ResolveUserContract(admin, permission.VerbUpdate, admin).Variant)
	assert.Equal(t, UserSelf, ResolveUserContract(developer, permission.VerbUpdate, developer).Variant)
	assert.Equal(t, UserNone, ResolveUserContract(developer, permission.VerbUpdate, manager).Variant)

	role := ResolveUserContract(admin, permission.VerbUpdate, developer)
	assert.Equal(t, UserStaffRole, role.Variant)
	assert.Equal(t, []string{"role"}, role.Readable)
	assert.Equal(t, Object{"role": models.RoleDeveloper}, RenderUser(developer, role))
}

func TestRenderTask_WriteUsesIDs(t *testing.T) {
	task := &models.Task{
		ID: 7, Title: "T", AuthorID: ptr(manager.ID), ExecutorID: ptr(developer.ID),
		State: workflow.StateNew, Priority: models.PriorityMiddle,
		Tags: []models.Tag{{ID: 2, Title: "bug"}, {ID: 1, Title: "feature"}},
	}
	out := RenderTask(task, nil, ResolveTaskContract(manager, permission.VerbCreate, nil))

	assert.Equal(t, manager.ID, out["author"])
	assert.Equal(t, developer.ID, out["executor"])
	assert.Equal(t, []string{"bug", "feature"}, out["tags"])
	assert.Equal(t, workflow.StateNew, out["state"])
}

func TestRenderTask_ReadNestsUsers(t *testing.T) {
	task := &models.Task{ID: 7, AuthorID: ptr(manager.ID)}
	users := UserIndex{}
	users.Add(manager, nil)

	out := RenderTask(task, users, ResolveTaskContract(developer, permission.VerbRead, nil))

	author, ok := out["author"].(Object)
	require.True(t, ok)
	assert.Equal(t, "m@test.com", author["email"])
	assert.Nil(t, out["executor"])
}

func TestRenderUser_Avatar(t *testing.T) {
	u := *developer
	c := ResolveUserContract(developer, permission.VerbRead, nil)
	assert.Nil(t, RenderUser(&u, c)["avatar_picture"])

	u.Avatar = sql.NullString{String: "/uploads/a.png", Valid: true}
	assert.Equal(t, "/uploads/a.png", RenderUser(&u, c)["avatar_picture"])
}

func TestDecodeTaskPayload(t *testing.T) {
	p, err := DecodeTaskPayload([]byte(`{"title":"T","deadline":"2023-07-05","priority":"middle","state":"new task","executor":3,"tags":["bug"],"author":1}`))
	require.NoError(t, err)

	assert.Equal(t, "T", *p.Title)
	assert.Equal(t, "2023-07-05", p.Deadline.String())
	assert.Equal(t, int64(3), *p.Executor)
	assert.Equal(t, []string{"bug"}, p.Tags)
	assert.True(t, p.Present.Has("author"))
	assert.Equal(t, []string{"author", "deadline", "executor", "priority", "state", "tags", "title"}, p.Present.Names())
}

func TestDecodeTaskPayload_Errors(t *testing.T) {
	tests := []struct {
		body  string
		field string
	}{
		{`{"priority":"urgent"}`, "priority"},
		{`{"state":"done"}`, "state"},
		{`{"title":""}`, "title"},
		{`{"title":null}`, "title"},
		{`{"deadline":"tomorrow"}`, "deadline"},
		{`{"executor":"bob"}`, "executor"},
		{`{"tags":[""]}`, "tags"},
		{`[1,2]`, apperror.NonField},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			_, err := DecodeTaskPayload([]byte(tt.body))
			require.Error(t, err)
			var appErr *apperror.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperror.KindValidation, appErr.Kind)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestDecodeTaskPayload_NullExecutorClears(t *testing.T) {
	p, err := DecodeTaskPayload([]byte(`{"executor":null}`))
	require.NoError(t, err)
	assert.True(t, p.Present.Has("executor"))
	assert.Nil(t, p.Executor)
}

func TestDecodeUserPayload(t *testing.T) {
	p, err := DecodeUserPayload([]byte(`{"name":"N","role":"admin","avatar_picture":"","delete_avatar":true}`))
	require.NoError(t, err)
	assert.Equal(t, "admin", *p.Role)
	assert.True(t, *p.DeleteAvatar)
	assert.Equal(t, []string{"avatar_picture", "delete_avatar", "name", "role"}, p.Present.Names())

	_, err = DecodeUserPayload([]byte(`{"role":"root"}`))
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = DecodeUserPayload([]byte(`{"email":"not-an-email"}`))
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = DecodeUserPayload([]byte(`{"avatar_picture":"http://x/y.png"}`))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestUserPayloadFromForm(t *testing.T) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	require.NoError(t, w.WriteField("name", "New"))
	require.NoError(t, w.WriteField("delete_avatar", "false"))
	part, err := w.CreateFormFile("avatar_picture", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 0x50, 0x4E, 0x47})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("PATCH", "/", &b)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	p, err := UserPayloadFromForm(req.MultipartForm)
	require.NoError(t, err)
	assert.Equal(t, "New", *p.Name)
	assert.False(t, *p.DeleteAvatar)
	require.NotNil(t, p.Avatar)
	assert.Equal(t, "me.png", p.Avatar.Filename)
	assert.Equal(t, []string{"avatar_picture", "delete_avatar", "name"}, p.Present.Names())
}

func TestDecodeCountdownPayload(t *testing.T) {
	p, err := DecodeCountdownPayload([]byte(`{"seconds":5}`))
	require.NoError(t, err)
	assert.Equal(t, 5, *p.Seconds)

	_, err = DecodeCountdownPayload([]byte(`{}`))
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = DecodeCountdownPayload([]byte(`{"seconds":-1}`))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestCheckRequired(t *testing.T) {
	err := CheckRequired(permission.NewFieldSet("title"), permission.NewFieldSet("title", "deadline"))
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []string{"deadline"}, appErr.Fields.Fields())

	assert.NoError(t, CheckRequired(permission.NewFieldSet("title"), permission.FieldSet{}))
}

func TestValidateAvatar(t *testing.T) {
	assert.NoError(t, ValidateAvatar("me.PNG", 10, 100))
	assert.NoError(t, ValidateAvatar("me.jpeg", 100, 100))
	assert.True(t, apperror.Is(ValidateAvatar("me.gif", 10, 100), apperror.KindValidation))
	assert.True(t, apperror.Is(ValidateAvatar("me.png", 101, 100), apperror.KindValidation))
	assert.True(t, apperror.Is(ValidateAvatar("noext", 1, 100), apperror.KindValidation))
}

func TestPayloadFields(t *testing.T) {
	fields, err := PayloadFields([]byte(`{"title":"", "priority": 5}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"priority", "title"}, fields.Names())

	fields, err = PayloadFields(nil)
	require.NoError(t, err)
	assert.Empty(t, fields)

	_, err = PayloadFields([]byte(`"x"`))
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	assert.Empty(t, FormFields(nil))
}
