// Package view selects, per actor and verb, which fields of a resource are
// readable and writable and which values the server forces.
package view

import (
	"task-manager/internal/models"
	"task-manager/internal/permission"
	"task-manager/internal/workflow"
)

// Variant tags the contract chosen for a request.
type Variant string

const (
	TaskRead        Variant = "task.read"
	TaskCreate      Variant = "task.create"
	TaskStaffUpdate Variant = "task.update.staff"
	TaskAuthor      Variant = "task.update.author"
	TaskExecutor    Variant = "task.update.executor"
	TaskNone        Variant = "task.none"

	UserRead      Variant = "user.read"
	UserStaffSelf Variant = "user.update.staff_self"
	UserStaffRole Variant = "user.update.staff_role"
	UserSelf      Variant = "user.update.self"
	UserNone      Variant = "user.none"

	TagRead  Variant = "tag.read"
	TagWrite Variant = "tag.write"
)

var (
	taskReadFields = []string{
		"id", "title", "author", "executor", "description", "created_at", "edited_at",
		"deadline", "state", "priority", "tags",
	}
	taskEditable = permission.NewFieldSet("title", "description", "deadline", "priority", "executor", "tags", "state")
	taskRequired = permission.NewFieldSet("title", "description", "deadline", "priority")

	userReadFields = []string{"id", "username", "name", "surname", "email", "role", "is_staff", "avatar_picture"}

	tagReadFields = []string{"id", "title", "tasks"}
	tagEditable   = permission.NewFieldSet("title")
)

// Defaults are values the server assigns regardless of the payload.
type Defaults struct {
	// AuthorID overwrites the task author when SetAuthor is true.
	AuthorID   *int64
	SetAuthor  bool
	State      workflow.State
	ForceState bool
}

type Contract struct {
	Variant  Variant
	Readable []string
	Writable permission.FieldSet
	// Required lists fields that must be present for a full write (create, PUT).
	Required permission.FieldSet
	// NestedRelations renders author/executor as objects instead of ids.
	NestedRelations bool
	Defaults        Defaults
}

// CanRead reports whether field is part of the output projection.
func (c Contract) CanRead(field string) bool {
	for _, f := range c.Readable {
		if f == field {
			return true
		}
	}
	return false
}

// RequiredFor returns the required fields for verb; PATCH never requires fields.
func (c Contract) RequiredFor(full bool) permission.FieldSet {
	if !full {
		return permission.FieldSet{}
	}
	return c.Required
}

// ResolveTaskContract picks the task contract for actor performing verb on task.
// task is nil for list and create.
func ResolveTaskContract(actor *models.User, verb permission.Verb, task *models.Task) Contract {
	switch verb {
	case permission.VerbRead:
		return Contract{Variant: TaskRead, Readable: taskReadFields, NestedRelations: true}
	case permission.VerbCreate:
		var author *int64
		if actor != nil {
			id := actor.ID
			author = &id
		}
		return Contract{
			Variant:  TaskCreate,
			Readable: taskReadFields,
			Writable: taskEditable,
			Required: taskRequired,
			Defaults: Defaults{AuthorID: author, SetAuthor: true, State: workflow.StateNew, ForceState: true},
		}
	case permission.VerbUpdate:
		if actor == nil || task == nil {
			return Contract{Variant: TaskNone}
		}
		keepAuthor := Defaults{AuthorID: task.AuthorID, SetAuthor: true}
		target := permission.TaskTarget(task)
		var variant Variant
		var writable permission.FieldSet
		switch {
		case actor.Staff():
			variant, writable = TaskStaffUpdate, taskEditable
		case target.AuthorID != nil && *target.AuthorID == actor.ID:
			variant, writable = TaskAuthor, permission.TaskAuthorFields
		case target.ExecutorID != nil && *target.ExecutorID == actor.ID:
			variant, writable = TaskExecutor, permission.TaskExecutorFields
		default:
			return Contract{Variant: TaskNone}
		}
		return Contract{
			Variant:  variant,
			Readable: taskReadFields,
			Writable: writable,
			Required: intersect(taskRequired, writable),
			Defaults: keepAuthor,
		}
	}
	return Contract{Variant: TaskNone}
}

// ResolveUserContract picks the user contract for actor performing verb on target.
func ResolveUserContract(actor *models.User, verb permission.Verb, target *models.User) Contract {
	if verb == permission.VerbRead {
		return Contract{Variant: UserRead, Readable: userReadFields}
	}
	if verb != permission.VerbUpdate || actor == nil || target == nil {
		return Contract{Variant: UserNone}
	}
	self := actor.ID == target.ID
	switch {
	case self && actor.Staff():
		return Contract{Variant: UserStaffSelf, Readable: userReadFields, Writable: permission.UserStaffSelfFields}
	case actor.Staff():
		return Contract{Variant: UserStaffRole, Readable: []string{"role"}, Writable: permission.UserStaffFields}
	case self:
		return Contract{Variant: UserSelf, Readable: userReadFields, Writable: permission.UserSelfFields}
	}
	return Contract{Variant: UserNone}
}

func ResolveTagContract(verb permission.Verb) Contract {
	if verb == permission.VerbRead || verb == permission.VerbDelete {
		return Contract{Variant: TagRead, Readable: tagReadFields}
	}
	return Contract{Variant: TagWrite, Readable: tagReadFields, Writable: tagEditable, Required: tagEditable}
}

func intersect(a, b permission.FieldSet) permission.FieldSet {
	out := permission.FieldSet{}
	for f := range a {
		if b.Has(f) {
			out[f] = struct{}{}
		}
	}
	return out
}
