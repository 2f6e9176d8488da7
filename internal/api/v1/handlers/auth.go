package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Token issues an access and a refresh token for valid credentials.
func (h *Handler) Token(c *fiber.Ctx) error {
	pair, err := h.Auth.Login(c.UserContext(), c.Body())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(pair)
}

func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	access, err := h.Auth.Refresh(c.UserContext(), c.Body())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"access": access})
}
