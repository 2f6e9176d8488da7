package handlers

import (
	"github.com/gofiber/fiber/v2"

	"task-manager/internal/middleware"
)

func (h *Handler) ListTags(c *fiber.Ctx) error {
	tags, err := h.Tags.List(c.UserContext(), middleware.Actor(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tags)
}

func (h *Handler) GetTag(c *fiber.Ctx) error {
	tagID, err := id(c, "id", "Tag")
	if err != nil {
		return fail(c, err)
	}
	tag, err := h.Tags.Get(c.UserContext(), middleware.Actor(c), tagID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tag)
}

func (h *Handler) CreateTag(c *fiber.Ctx) error {
	tag, err := h.Tags.Create(c.UserContext(), middleware.Actor(c), c.Body())
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tag)
}

func (h *Handler) UpdateTag(full bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tagID, err := id(c, "id", "Tag")
		if err != nil {
			return fail(c, err)
		}
		tag, err := h.Tags.Update(c.UserContext(), middleware.Actor(c), tagID, c.Body(), full)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(tag)
	}
}

func (h *Handler) DeleteTag(c *fiber.Ctx) error {
	tagID, err := id(c, "id", "Tag")
	if err != nil {
		return fail(c, err)
	}
	if err := h.Tags.Delete(c.UserContext(), middleware.Actor(c), tagID); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
