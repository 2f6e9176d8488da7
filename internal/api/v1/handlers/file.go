package handlers

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"task-manager/internal/apperror"
	"task-manager/internal/service"
)

// userInput reads a user write body. Multipart requests carry the avatar file.
func userInput(c *fiber.Ctx) (service.UserInput, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return service.UserInput{}, apperror.ValidationField(apperror.NonField, "Malformed multipart form")
		}
		return service.UserInput{Form: form}, nil
	}
	return service.UserInput{Body: c.Body()}, nil
}

// GetFile serves an uploaded file by name.
func (h *Handler) GetFile(c *fiber.Ctx) error {
	filename := c.Params("filename")
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return fail(c, apperror.NotFound("File not found"))
	}
	if err := c.SendFile(filepath.Join(h.UploadDir, filename)); err != nil {
		return fail(c, apperror.NotFound("File not found"))
	}
	return nil
}
