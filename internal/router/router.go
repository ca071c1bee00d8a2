package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-tasks-api/internal/config"
	"github.com/noah-isme/gema-tasks-api/internal/handler"
	"github.com/noah-isme/gema-tasks-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TaskHandler         *handler.TaskHandler
	SubmissionHandler   *handler.SubmissionHandler
	HelpHandler         *handler.HelpHandler
	FolderHandler       *handler.FolderHandler
	NotificationHandler *handler.NotificationHandler
	HealthProbes        map[string]handler.HealthProbe
	MetricsHandler      fiber.Handler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	if deps.MetricsHandler != nil {
		app.Get("/metrics", deps.MetricsHandler)
	}

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	protected := api.Group("", jwtMiddleware)

	if deps.TaskHandler != nil {
		deps.TaskHandler.Register(protected)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(protected)
	}
	if deps.HelpHandler != nil {
		deps.HelpHandler.Register(protected)
	}
	if deps.FolderHandler != nil {
		folders := protected.Group("/folders", middleware.RequireStudent())
		deps.FolderHandler.Register(folders)
	}
	if deps.NotificationHandler != nil {
		notifications := protected.Group("/notifications")
		deps.NotificationHandler.Register(notifications)
	}
}
