package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicwatch/incident-service/internal/api/http/handlers"
	"github.com/civicwatch/incident-service/internal/auth"
	"github.com/civicwatch/incident-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Incidents      *handlers.IncidentsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	incidents := app.Group("/incidents", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	incidents.Get("/stats", auth.RequireRole(domain.RoleOfficial, domain.RoleAdmin), cfg.Incidents.Stats)
	incidents.Get("/mine", cfg.Incidents.Mine)
	incidents.Get("/", cfg.Incidents.List)
	incidents.Get("/:id", cfg.Incidents.Get)
	// assign has no role middleware: the decision engine owns the
	// forbidden/conflict policy, including its response shape
	incidents.Post("/:id/assign", cfg.Incidents.Assign)
	incidents.Post("/:id/status", cfg.Incidents.UpdateStatus)
	incidents.Post("/:id/responses", cfg.Incidents.AddResponse)
}
