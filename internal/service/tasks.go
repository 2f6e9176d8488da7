package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"task-manager/internal/apperror"
	"task-manager/internal/jobs"
	"task-manager/internal/models"
	"task-manager/internal/notify"
	"task-manager/internal/permission"
	"task-manager/internal/repository"
	"task-manager/internal/view"
	"task-manager/internal/workflow"
	"task-manager/pkg/logger"
)

type TaskService struct {
	store repository.Store
	queue jobs.Submitter
}

func NewTaskService(store repository.Store, queue jobs.Submitter) *TaskService {
	return &TaskService{store: store, queue: queue}
}

func (s *TaskService) List(ctx context.Context, actor *models.User, filter models.TaskFilter) ([]view.Object, error) {
	if err := authorize(ctx, permission.AuthorizeTask(actor, permission.VerbRead, nil, nil), "task", permission.VerbRead); err != nil {
		return nil, err
	}
	return s.list(ctx, actor, filter)
}

func (s *TaskService) list(ctx context.Context, actor *models.User, filter models.TaskFilter) ([]view.Object, error) {
	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, translate(err, "Task")
	}
	users, err := userIndex(ctx, s.store, tasks...)
	if err != nil {
		return nil, translate(err, "User")
	}
	return view.RenderTasks(tasks, users, view.ResolveTaskContract(actor, permission.VerbRead, nil)), nil
}

func (s *TaskService) Get(ctx context.Context, actor *models.User, id int64) (view.Object, error) {
	if err := authorize(ctx, permission.AuthorizeTask(actor, permission.VerbRead, nil, nil), "task", permission.VerbRead); err != nil {
		return nil, err
	}
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, translate(err, "Task")
	}
	return s.renderRead(ctx, actor, task)
}

func (s *TaskService) renderRead(ctx context.Context, actor *models.User, task *models.Task) (view.Object, error) {
	users, err := userIndex(ctx, s.store, *task)
	if err != nil {
		return nil, translate(err, "User")
	}
	return view.RenderTask(task, users, view.ResolveTaskContract(actor, permission.VerbRead, task)), nil
}

// ListForUser lists the tasks executed by userID.
func (s *TaskService) ListForUser(ctx context.Context, actor *models.User, userID int64) ([]view.Object, error) {
	if err := authorize(ctx, permission.AuthorizeTask(actor, permission.VerbRead, nil, nil), "task", permission.VerbRead); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, translate(err, "User")
	}
	return s.list(ctx, actor, models.TaskFilter{ExecutorID: &userID})
}

// GetForUser returns taskID only when userID is its executor.
func (s *TaskService) GetForUser(ctx context.Context, actor *models.User, userID, taskID int64) (view.Object, error) {
	if err := authorize(ctx, permission.AuthorizeTask(actor, permission.VerbRead, nil, nil), "task", permission.VerbRead); err != nil {
		return nil, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, translate(err, "Task")
	}
	if task.ExecutorID == nil || *task.ExecutorID != userID {
		return nil, apperror.NotFound("Task not found")
	}
	return s.renderRead(ctx, actor, task)
}

// Tags lists the tags attached to a task in stored order.
func (s *TaskService) Tags(ctx context.Context, actor *models.User, taskID int64) ([]view.Object, error) {
	task, err := s.taskForTags(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	out := make([]view.Object, 0, len(task.Tags))
	for i := range task.Tags {
		obj, err := s.renderTag(ctx, &task.Tags[i])
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func (s *TaskService) Tag(ctx context.Context, actor *models.User, taskID, tagID int64) (view.Object, error) {
	task, err := s.taskForTags(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	for i := range task.Tags {
		if task.Tags[i].ID == tagID {
			return s.renderTag(ctx, &task.Tags[i])
		}
	}
	return nil, apperror.NotFound("Tag not found")
}

func (s *TaskService) taskForTags(ctx context.Context, actor *models.User, taskID int64) (*models.Task, error) {
	if err := authorize(ctx, permission.AuthorizeTag(actor, permission.VerbRead, nil, nil), "tag", permission.VerbRead); err != nil {
		return nil, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, translate(err, "Task")
	}
	return task, nil
}

func (s *TaskService) renderTag(ctx context.Context, tag *models.Tag) (view.Object, error) {
	return renderTag(ctx, s.store, tag, view.ResolveTagContract(permission.VerbRead))
}

// Create stores a new task authored by actor in state NEW.
func (s *TaskService) Create(ctx context.Context, actor *models.User, body []byte) (view.Object, error) {
	fields, err := view.PayloadFields(body)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, permission.AuthorizeTask(actor, permission.VerbCreate, nil, fields), "task", permission.VerbCreate); err != nil {
		return nil, err
	}
	contract := view.ResolveTaskContract(actor, permission.VerbCreate, nil)
	payload, err := view.DecodeTaskPayload(body)
	if err != nil {
		return nil, err
	}
	if err := view.CheckRequired(payload.Present, contract.Required); err != nil {
		return nil, err
	}

	task := &models.Task{Tags: []models.Tag{}}
	err = s.store.InTx(ctx, func(q repository.Querier) error {
		if err := applyTask(ctx, q, task, payload, contract, false); err != nil {
			return err
		}
		return q.CreateTask(ctx, task)
	})
	if err != nil {
		return nil, translate(err, "Task")
	}

	logger.AuditLogger.Info("Task created", append(logger.Fields(ctx), zap.Int64("task_id", task.ID))...)
	if task.ExecutorID != nil {
		s.notifyAssigned(ctx, task.ID)
	}
	return view.RenderTask(task, nil, contract), nil
}

// Update applies a PUT (full) or PATCH to task id. The task row is locked for
// the whole check-then-act sequence so the transition is validated against
// the committed state.
func (s *TaskService) Update(ctx context.Context, actor *models.User, id int64, body []byte, full bool) (view.Object, error) {
	fields, err := view.PayloadFields(body)
	if err != nil {
		return nil, err
	}

	var (
		task            *models.Task
		contract        view.Contract
		executorChanged bool
	)
	err = s.store.InTx(ctx, func(q repository.Querier) error {
		current, err := q.LockTask(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(ctx, permission.AuthorizeTask(actor, permission.VerbUpdate, current, fields), "task", permission.VerbUpdate); err != nil {
			return err
		}
		contract = view.ResolveTaskContract(actor, permission.VerbUpdate, current)

		payload, err := view.DecodeTaskPayload(body)
		if err != nil {
			return err
		}
		if err := view.CheckRequired(payload.Present, contract.RequiredFor(full)); err != nil {
			return err
		}

		updated := *current
		if err := applyTask(ctx, q, &updated, payload, contract, true); err != nil {
			return err
		}
		executorChanged = !sameID(current.ExecutorID, updated.ExecutorID)
		if err := q.UpdateTask(ctx, &updated); err != nil {
			return err
		}
		task = &updated
		return nil
	})
	if err != nil {
		return nil, translate(err, "Task")
	}

	logger.AuditLogger.Info("Task updated", append(logger.Fields(ctx),
		zap.Int64("task_id", task.ID), zap.String("variant", string(contract.Variant)))...)
	if executorChanged && task.ExecutorID != nil {
		s.notifyAssigned(ctx, task.ID)
	}
	return view.RenderTask(task, nil, contract), nil
}

// Delete removes a task. Non-staff callers are rejected before the lookup.
func (s *TaskService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if err := authorize(ctx, permission.AuthorizeTask(actor, permission.VerbDelete, nil, nil), "task", permission.VerbDelete); err != nil {
		return err
	}
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		task, err := q.LockTask(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(ctx, permission.AuthorizeTask(actor, permission.VerbDelete, task, nil), "task", permission.VerbDelete); err != nil {
			return err
		}
		return q.DeleteTask(ctx, id)
	})
	if err != nil {
		return translate(err, "Task")
	}
	logger.AuditLogger.Info("Task deleted", append(logger.Fields(ctx), zap.Int64("task_id", id))...)
	return nil
}

func (s *TaskService) notifyAssigned(ctx context.Context, taskID int64) {
	if s.queue == nil {
		return
	}
	if _, err := s.queue.Submit(ctx, jobs.KindAssignNotification, notify.AssignPayload{TaskID: taskID}); err != nil {
		logger.ErrorLogger.Error("Enqueue assign notification failed",
			append(logger.Fields(ctx), zap.Int64("task_id", taskID), zap.Error(err))...)
	}
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// applyTask copies the writable fields present in payload onto task, resolves
// references and applies the contract defaults.
func applyTask(ctx context.Context, q repository.Querier, task *models.Task, p *view.TaskPayload, c view.Contract, existing bool) error {
	set := func(field string) bool {
		return p.Present.Has(field) && c.Writable.Has(field)
	}

	if set("title") {
		task.Title = *p.Title
	}
	if set("description") {
		task.Description = *p.Description
	}
	if set("deadline") {
		task.Deadline = *p.Deadline
	}
	if set("priority") {
		task.Priority = models.Priority(*p.Priority)
	}
	if set("executor") {
		if p.Executor == nil {
			task.ExecutorID = nil
		} else {
			if _, err := q.GetUser(ctx, *p.Executor); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperror.ValidationField("executor", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *p.Executor))
				}
				return err
			}
			id := *p.Executor
			task.ExecutorID = &id
		}
	}
	if set("tags") {
		tags, missing, err := repository.ResolveTags(ctx, q, p.Tags)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			errs := apperror.FieldErrors{}
			for _, title := range missing {
				errs.Add("tags", fmt.Sprintf("Object with title=%s does not exist.", title))
			}
			return apperror.Validation(errs)
		}
		task.Tags = tags
	}
	if set("state") && existing {
		next, _ := workflow.ParseState(*p.State)
		if err := workflow.ValidateTransition(task.State, next); err != nil {
			if task.State == workflow.StateArchived && next == workflow.StateArchived {
				logger.FromContext(ctx).Warn("Rejected archived self-transition", zap.Int64("task_id", task.ID))
			}
			return apperror.ValidationField("state", fmt.Sprintf("Invalid state transition from %q to %q.", task.State, next))
		}
		task.State = next
	}

	if c.Defaults.SetAuthor {
		task.AuthorID = c.Defaults.AuthorID
	}
	if c.Defaults.ForceState {
		task.State = c.Defaults.State
	}
	return nil
}
