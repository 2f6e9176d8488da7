package handlers

import (
	"github.com/gofiber/fiber/v2"

	"task-manager/internal/jobs"
	"task-manager/internal/middleware"
)

// JobsPath is the polling endpoint prefix returned in Location headers.
const JobsPath = "/api/v1/jobs/"

// Countdown submits a countdown job and points the client at its poll URL.
func (h *Handler) Countdown(c *fiber.Ctx) error {
	job, err := h.Jobs.Countdown(c.UserContext(), middleware.Actor(c), c.Body())
	if err != nil {
		return fail(c, err)
	}
	c.Location(JobsPath + job.TaskID)
	return c.Status(fiber.StatusCreated).JSON(job)
}

// GetJob polls a job. A finished job answers 201 with the artifact location.
func (h *Handler) GetJob(c *fiber.Ctx) error {
	job, err := h.Jobs.Get(c.UserContext(), middleware.Actor(c), c.Params("task_id"))
	if err != nil {
		return fail(c, err)
	}
	if job.Status == jobs.StatusSuccess {
		if url := job.ResultURL(); url != "" {
			c.Location(url)
		}
		return c.Status(fiber.StatusCreated).JSON(job)
	}
	return c.JSON(job)
}
