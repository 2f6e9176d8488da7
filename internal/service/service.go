// Package service orchestrates requests: lookup, authorization, view contract,
// validation and commit run in one transaction, side effects run after commit.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"task-manager/internal/apperror"
	"task-manager/internal/models"
	"task-manager/internal/permission"
	"task-manager/internal/repository"
	"task-manager/internal/view"
	"task-manager/internal/workflow"
	"task-manager/pkg/logger"
)

// translate maps lower-layer sentinel errors to API errors.
func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(fmt.Sprintf("%s not found", resource))
	case errors.Is(err, repository.ErrDuplicate):
		return apperror.ValidationField("username", "A user with that username already exists.")
	case errors.Is(err, workflow.ErrInvalidTransition):
		return apperror.ValidationField("state", err.Error())
	}
	return apperror.Internal("Internal server error", err)
}

// authorize logs denials on the security logger and returns the decision error.
func authorize(ctx context.Context, d permission.Decision, resource string, verb permission.Verb) error {
	if d.Allowed() {
		return nil
	}
	logger.SecurityLogger.Warn("Request denied", append(logger.Fields(ctx),
		zap.String("resource", resource),
		zap.String("verb", string(verb)),
		zap.Stringer("outcome", d.Outcome),
		zap.Strings("rejected_fields", d.Rejected),
	)...)
	return d.Err()
}

func actorID(actor *models.User) int64 {
	if actor == nil {
		return 0
	}
	return actor.ID
}

// userIndex loads the users referenced by tasks for nested rendering.
func userIndex(ctx context.Context, q repository.Querier, tasks ...models.Task) (view.UserIndex, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, t := range tasks {
		for _, id := range []*int64{t.AuthorID, t.ExecutorID} {
			if id != nil && !seen[*id] {
				seen[*id] = true
				ids = append(ids, *id)
			}
		}
	}
	users, err := q.ListUsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	ix := view.UserIndex{}
	for i := range users {
		ix.Add(&users[i])
	}
	return ix, nil
}
