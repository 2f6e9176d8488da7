package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"task-manager/internal/apperror"
	"task-manager/internal/service"
	"task-manager/pkg/logger"
)

// Handler serves the v1 API on top of the services.
type Handler struct {
	Auth  *service.AuthService
	Users *service.UserService
	Tasks *service.TaskService
	Tags  *service.TagService
	Jobs  *service.JobService
	// UploadDir is the local directory GetFile serves from.
	UploadDir string
}

// fail writes err in the error envelope.
func fail(c *fiber.Ctx, err error) error {
	status := apperror.Status(err)
	body := fiber.Map{
		"message": "Internal server error",
		"success": false,
		"status":  status,
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) && status != fiber.StatusInternalServerError {
		body["message"] = appErr.Message
		if len(appErr.Fields) > 0 {
			body["errors"] = appErr.Fields
		}
	}
	if status == fiber.StatusInternalServerError {
		logger.ErrorLogger.Error("Request failed", append(logger.Fields(c.UserContext()), zap.Error(err))...)
	}
	return c.Status(status).JSON(body)
}

// id reads a numeric path parameter. Anything else cannot name a resource.
func id(c *fiber.Ctx, key, resource string) (int64, error) {
	v, err := c.ParamsInt(key)
	if err != nil || v <= 0 {
		return 0, apperror.NotFound(resource + " not found")
	}
	return int64(v), nil
}

// ErrorHandler renders errors that escape handlers, such as unknown routes,
// in the same envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"message": fe.Message,
			"success": false,
			"status":  fe.Code,
		})
	}
	return fail(c, err)
}
