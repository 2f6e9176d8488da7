package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"task-manager/internal/middleware"
	"task-manager/internal/models"
)

// taskFilter reads the list filters. tags may repeat or be comma separated.
func taskFilter(c *fiber.Ctx) models.TaskFilter {
	filter := models.TaskFilter{
		State:    c.Query("state"),
		Author:   c.Query("author"),
		Executor: c.Query("executor"),
	}
	for _, raw := range c.Context().QueryArgs().PeekMulti("tags") {
		for _, title := range strings.Split(string(raw), ",") {
			if title = strings.TrimSpace(title); title != "" {
				filter.Tags = append(filter.Tags, title)
			}
		}
	}
	return filter
}

func (h *Handler) ListTasks(c *fiber.Ctx) error {
	tasks, err := h.Tasks.List(c.UserContext(), middleware.Actor(c), taskFilter(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tasks)
}

func (h *Handler) GetTask(c *fiber.Ctx) error {
	taskID, err := id(c, "id", "Task")
	if err != nil {
		return fail(c, err)
	}
	task, err := h.Tasks.Get(c.UserContext(), middleware.Actor(c), taskID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(task)
}

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	task, err := h.Tasks.Create(c.UserContext(), middleware.Actor(c), c.Body())
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// UpdateTask handles PUT (full) and PATCH on /tasks/:id.
func (h *Handler) UpdateTask(full bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		taskID, err := id(c, "id", "Task")
		if err != nil {
			return fail(c, err)
		}
		task, err := h.Tasks.Update(c.UserContext(), middleware.Actor(c), taskID, c.Body(), full)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(task)
	}
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	taskID, err := id(c, "id", "Task")
	if err != nil {
		return fail(c, err)
	}
	if err := h.Tasks.Delete(c.UserContext(), middleware.Actor(c), taskID); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ListTaskTags(c *fiber.Ctx) error {
	taskID, err := id(c, "id", "Task")
	if err != nil {
		return fail(c, err)
	}
	tags, err := h.Tasks.Tags(c.UserContext(), middleware.Actor(c), taskID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tags)
}

func (h *Handler) GetTaskTag(c *fiber.Ctx) error {
	taskID, err := id(c, "id", "Task")
	if err != nil {
		return fail(c, err)
	}
	tagID, err := id(c, "tag_id", "Tag")
	if err != nil {
		return fail(c, err)
	}
	tag, err := h.Tasks.Tag(c.UserContext(), middleware.Actor(c), taskID, tagID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tag)
}
