package permission

import "task-manager/internal/models"

// Field allow-lists.
var (
	TaskAuthorFields   = NewFieldSet("executor", "description", "deadline", "priority", "tags", "state")
	TaskExecutorFields = NewFieldSet("tags", "state")

	UserStaffSelfFields = NewFieldSet("username", "name", "surname", "email", "role", "avatar_picture", "delete_avatar")
	UserStaffFields     = NewFieldSet("role")
	UserSelfFields      = NewFieldSet("username", "name", "surname", "email", "avatar_picture", "delete_avatar")
)

// Tasks: any authenticated user may read and create; staff may do anything;
// authors and executors may touch their own allow-lists.
var Tasks = &Policy{
	Resource: "task",
	Rules: []Rule{
		{Name: "authenticated-read", Verbs: []Verb{VerbRead}},
		{Name: "authenticated-create", Verbs: []Verb{VerbCreate}},
		{Name: "staff", Verbs: []Verb{VerbUpdate, VerbDelete}, Match: isStaff},
		{Name: "author", Verbs: []Verb{VerbUpdate}, Match: isAuthor, Fields: TaskAuthorFields},
		{Name: "executor", Verbs: []Verb{VerbUpdate}, Match: isExecutor, Fields: TaskExecutorFields},
	},
}

// Users cannot be created through the API.
var Users = &Policy{
	Resource: "user",
	Rules: []Rule{
		{Name: "authenticated-read", Verbs: []Verb{VerbRead}},
		{Name: "staff-self", Verbs: []Verb{VerbUpdate}, Match: isStaffSelf, Fields: UserStaffSelfFields},
		{Name: "staff", Verbs: []Verb{VerbUpdate}, Match: isStaff, Fields: UserStaffFields},
		{Name: "self", Verbs: []Verb{VerbUpdate}, Match: isSelf, Fields: UserSelfFields},
		{Name: "staff-delete", Verbs: []Verb{VerbDelete}, Match: isStaff},
	},
}

var Tags = &Policy{
	Resource: "tag",
	Rules: []Rule{
		{Name: "authenticated-read", Verbs: []Verb{VerbRead}},
		{Name: "authenticated-create", Verbs: []Verb{VerbCreate}},
		{Name: "staff", Verbs: []Verb{VerbUpdate, VerbDelete}, Match: isStaff},
	},
}

// Jobs covers countdown submission and job polling.
var Jobs = &Policy{
	Resource: "job",
	Rules: []Rule{
		{Name: "authenticated-read", Verbs: []Verb{VerbRead}},
		{Name: "authenticated-create", Verbs: []Verb{VerbCreate}},
	},
}

func AuthorizeTask(actor *models.User, verb Verb, task *models.Task, fields FieldSet) Decision {
	var target *Target
	if task != nil {
		target = TaskTarget(task)
	}
	return Tasks.Authorize(actor, verb, target, fields)
}

func AuthorizeUser(actor *models.User, verb Verb, user *models.User, fields FieldSet) Decision {
	var target *Target
	if user != nil {
		target = UserTarget(user)
	}
	return Users.Authorize(actor, verb, target, fields)
}

func AuthorizeTag(actor *models.User, verb Verb, tag *models.Tag, fields FieldSet) Decision {
	var target *Target
	if tag != nil {
		target = TagTarget()
	}
	return Tags.Authorize(actor, verb, target, fields)
}
