package v1

import (
	"github.com/gofiber/fiber/v2"

	"task-manager/internal/api/v1/handlers"
	"task-manager/internal/middleware"
	"task-manager/internal/storage"
)

func RegisterRoutes(app *fiber.App, h *handlers.Handler, lookup middleware.LookupFunc) {
	app.Get(storage.URLPrefix+"/:filename", h.GetFile)

	api := app.Group("/api/v1")

	// Auth
	api.Post("/token", h.Token)
	api.Post("/token/refresh", h.RefreshToken)

	auth := middleware.UseToken(h.Auth, lookup)

	// User
	userRoutes := api.Group("/users", auth)
	userRoutes.Get("/", h.ListUsers)
	userRoutes.Post("/", h.CreateUser)
	userRoutes.Get("/:id", h.GetUser)
	userRoutes.Put("/:id", h.UpdateUser(true))
	userRoutes.Patch("/:id", h.UpdateUser(false))
	userRoutes.Delete("/:id", h.DeleteUser)
	userRoutes.Get("/:id/tasks", h.ListUserTasks)
	userRoutes.Get("/:id/tasks/:task_id", h.GetUserTask)

	currentUser := api.Group("/current-user", auth)
	currentUser.Get("/", h.CurrentUser)
	currentUser.Put("/", h.UpdateCurrentUser(true))
	currentUser.Patch("/", h.UpdateCurrentUser(false))

	// Task
	taskRoutes := api.Group("/tasks", auth)
	taskRoutes.Post("/", h.CreateTask)
	taskRoutes.Get("/", h.ListTasks)
	taskRoutes.Get("/:id", h.GetTask)
	taskRoutes.Put("/:id", h.UpdateTask(true))
	taskRoutes.Patch("/:id", h.UpdateTask(false))
	taskRoutes.Delete("/:id", h.DeleteTask)
	taskRoutes.Get("/:id/tags", h.ListTaskTags)
	taskRoutes.Get("/:id/tags/:tag_id", h.GetTaskTag)

	// Tag
	tagRoutes := api.Group("/tags", auth)
	tagRoutes.Post("/", h.CreateTag)
	tagRoutes.Get("/", h.ListTags)
	tagRoutes.Get("/:id", h.GetTag)
	tagRoutes.Put("/:id", h.UpdateTag(true))
	tagRoutes.Patch("/:id", h.UpdateTag(false))
	tagRoutes.Delete("/:id", h.DeleteTag)

	// Jobs
	api.Post("/countdown", auth, h.Countdown)
	api.Get("/jobs/:task_id", auth, h.GetJob)
}
