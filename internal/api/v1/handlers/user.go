package handlers

import (
	"github.com/gofiber/fiber/v2"

	"task-manager/internal/apperror"
	"task-manager/internal/middleware"
)

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.Users.List(c.UserContext(), middleware.Actor(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(users)
}

func (h *Handler) GetUser(c *fiber.Ctx) error {
	userID, err := id(c, "id", "User")
	if err != nil {
		return fail(c, err)
	}
	user, err := h.Users.Get(c.UserContext(), middleware.Actor(c), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// CreateUser always fails: accounts are not created through the API.
func (h *Handler) CreateUser(c *fiber.Ctx) error {
	return fail(c, h.Users.Create(c.UserContext(), middleware.Actor(c)))
}

func (h *Handler) updateUser(c *fiber.Ctx, userID int64, full bool) error {
	in, err := userInput(c)
	if err != nil {
		return fail(c, err)
	}
	user, err := h.Users.Update(c.UserContext(), middleware.Actor(c), userID, in, full)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// UpdateUser handles PUT (full) and PATCH on /users/:id.
func (h *Handler) UpdateUser(full bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := id(c, "id", "User")
		if err != nil {
			return fail(c, err)
		}
		return h.updateUser(c, userID, full)
	}
}

func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	userID, err := id(c, "id", "User")
	if err != nil {
		return fail(c, err)
	}
	if err := h.Users.Delete(c.UserContext(), middleware.Actor(c), userID); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListUserTasks lists the tasks executed by the user.
func (h *Handler) ListUserTasks(c *fiber.Ctx) error {
	userID, err := id(c, "id", "User")
	if err != nil {
		return fail(c, err)
	}
	tasks, err := h.Tasks.ListForUser(c.UserContext(), middleware.Actor(c), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tasks)
}

func (h *Handler) GetUserTask(c *fiber.Ctx) error {
	userID, err := id(c, "id", "User")
	if err != nil {
		return fail(c, err)
	}
	taskID, err := id(c, "task_id", "Task")
	if err != nil {
		return fail(c, err)
	}
	task, err := h.Tasks.GetForUser(c.UserContext(), middleware.Actor(c), userID, taskID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(task)
}

// CurrentUser renders the caller's own record.
func (h *Handler) CurrentUser(c *fiber.Ctx) error {
	actor := middleware.Actor(c)
	if actor == nil {
		return fail(c, apperror.Unauthenticated("Authentication credentials were not provided."))
	}
	user, err := h.Users.Get(c.UserContext(), actor, actor.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// UpdateCurrentUser handles PUT and PATCH on the caller's own record.
func (h *Handler) UpdateCurrentUser(full bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := middleware.Actor(c)
		if actor == nil {
			return fail(c, apperror.Unauthenticated("Authentication credentials were not provided."))
		}
		return h.updateUser(c, actor.ID, full)
	}
}
