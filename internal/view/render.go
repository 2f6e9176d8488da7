package view

import (
	"task-manager/internal/models"
	"task-manager/internal/permission"
)

// UserIndex resolves author/executor ids to users when rendering nested relations.
type UserIndex map[int64]*models.User

// Add registers users, skipping nils.
func (ix UserIndex) Add(users ...*models.User) {
	for _, u := range users {
		if u != nil {
			ix[u.ID] = u
		}
	}
}

// Object is a rendered JSON object.
type Object map[string]any

func project(full Object, readable []string) Object {
	out := make(Object, len(readable))
	for _, f := range readable {
		if v, ok := full[f]; ok {
			out[f] = v
		}
	}
	return out
}

func avatarValue(u *models.User) any {
	if u.Avatar.Valid && u.Avatar.String != "" {
		return u.Avatar.String
	}
	return nil
}

func RenderUser(u *models.User, c Contract) Object {
	full := Object{
		"id":             u.ID,
		"username":       u.Username,
		"name":           u.Name,
		"surname":        u.Surname,
		"email":          u.Email,
		"role":           u.Role,
		"is_staff":       u.Staff(),
		"avatar_picture": avatarValue(u),
	}
	return project(full, c.Readable)
}

func RenderUsers(users []models.User, c Contract) []Object {
	out := make([]Object, 0, len(users))
	for i := range users {
		out = append(out, RenderUser(&users[i], c))
	}
	return out
}

func relation(id *int64, nested bool, users UserIndex) any {
	if id == nil {
		return nil
	}
	if !nested {
		return *id
	}
	u, ok := users[*id]
	if !ok {
		return *id
	}
	return RenderUser(u, Contract{Readable: userReadFields})
}

func RenderTask(t *models.Task, users UserIndex, c Contract) Object {
	full := Object{
		"id":          t.ID,
		"title":       t.Title,
		"author":      relation(t.AuthorID, c.NestedRelations, users),
		"executor":    relation(t.ExecutorID, c.NestedRelations, users),
		"description": t.Description,
		"created_at":  t.CreatedAt,
		"edited_at":   t.EditedAt,
		"deadline":    t.Deadline,
		"state":       t.State,
		"priority":    t.Priority,
		"tags":        t.TagTitles(),
	}
	return project(full, c.Readable)
}

func RenderTasks(tasks []models.Task, users UserIndex, c Contract) []Object {
	out := make([]Object, 0, len(tasks))
	for i := range tasks {
		out = append(out, RenderTask(&tasks[i], users, c))
	}
	return out
}

// RenderTag renders a tag with the tasks carrying it in read projection.
func RenderTag(tag *models.Tag, tasks []models.Task, users UserIndex, c Contract) Object {
	full := Object{
		"id":    tag.ID,
		"title": tag.Title,
		"tasks": RenderTasks(tasks, users, ResolveTaskContract(nil, permission.VerbRead, nil)),
	}
	return project(full, c.Readable)
}
