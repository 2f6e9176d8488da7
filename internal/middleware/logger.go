package middleware

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"task-manager/pkg/logger"
)

const HeaderRequestID = "X-Request-ID"

// RequestContext tags the request context with a request id and log fields,
// logs completion and turns panics into a 500 response.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		start := time.Now()
		requestID := c.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(HeaderRequestID, requestID)
		c.SetUserContext(logger.WithFields(c.UserContext(),
			zap.String("request_id", requestID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		))

		defer func() {
			if r := recover(); r != nil {
				logger.ErrorLogger.Error(fmt.Sprintf("Recovered from panic: %v", r),
					append(logger.Fields(c.UserContext()), zap.String("stack", string(debug.Stack())))...)
				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Internal server error",
					"success": false,
					"status":  fiber.StatusInternalServerError,
				})
			}
			logger.RequestLogger.Info("Request finished", append(logger.Fields(c.UserContext()),
				zap.Int("status", c.Response().StatusCode()),
				zap.Duration("total_time", time.Since(start)),
			)...)
		}()

		logger.RequestLogger.Info("Incoming request", logger.Fields(c.UserContext())...)
		return c.Next()
	}
}
