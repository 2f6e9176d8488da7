package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"task-manager/internal/models"
	"task-manager/internal/repository"
	"task-manager/internal/service"
	"task-manager/pkg/logger"
)

const actorKey = "actor"

// LookupFunc resolves the user id carried by a token.
type LookupFunc func(ctx context.Context, id int64) (*models.User, error)

func unauthorized(c *fiber.Ctx, msg string) error {
	logger.SecurityLogger.Warn(msg, append(logger.Fields(c.UserContext()), zap.String("ip", c.IP()))...)
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": msg,
		"success": false,
		"status":  fiber.StatusUnauthorized,
	})
}

// UseToken requires a valid bearer access token and stores the resolved user
// as the request actor.
func UseToken(auth *service.AuthService, lookup LookupFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "Authentication credentials were not provided.")
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return unauthorized(c, "Invalid token format")
		}
		claims, err := auth.Parse(parts[1], service.TokenAccess)
		if err != nil {
			return unauthorized(c, "Given token not valid for any token type")
		}

		ctx := logger.WithFields(c.UserContext(), zap.Int64("user_id", claims.UserID))
		user, err := lookup(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return unauthorized(c, "User not found")
			}
			logger.ErrorLogger.Error("Resolving token user failed", append(logger.Fields(ctx), zap.Error(err))...)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Internal server error",
				"success": false,
				"status":  fiber.StatusInternalServerError,
			})
		}
		c.SetUserContext(ctx)
		c.Locals(actorKey, user)
		return c.Next()
	}
}

// Actor returns the authenticated user of the request, or nil.
func Actor(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(actorKey).(*models.User)
	return u
}
