package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reporting-service/internal/api/http/handlers"
	"github.com/spec-kit/reporting-service/internal/auth"
	"github.com/spec-kit/reporting-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Reports *handlers.ReportsHandler
	Guard   *auth.Guard
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/me", cfg.Guard.Handle, cfg.Auth.Me)
	authGroup.Post("/create-user", cfg.Guard.Handle, auth.RequireRoles(domain.RoleAdmin), cfg.Auth.CreateUser)

	reports := app.Group("/admin/reports", cfg.Guard.Handle, auth.RequireRoles(domain.RoleAdmin))
	reports.Post("/users", cfg.Reports.ExportUsers)
	reports.Get("/jobs/:id", cfg.Reports.JobStatus)
}
