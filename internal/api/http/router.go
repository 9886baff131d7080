package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Complaints     *handlers.ComplaintsHandler
	InfoRequests   *handlers.InfoRequestsHandler
	AuthMiddleware *auth.AuthMiddleware
	Gatherer       prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	citizenOnly := auth.RequireKind(domain.ActorKindCitizen)
	staffOnly := auth.RequireKind(domain.ActorKindEmployee, domain.ActorKindAdmin)

	complaints := app.Group("/complaints", cfg.AuthMiddleware.Handle)
	complaints.Post("/", citizenOnly, cfg.Complaints.Create)
	complaints.Get("/tracking/:code", cfg.Complaints.GetByTrackingNumber)
	complaints.Get("/:id", cfg.Complaints.Get)
	complaints.Patch("/:id", staffOnly, cfg.Complaints.Update)
	complaints.Post("/:id/respond", staffOnly, cfg.Complaints.Respond)
	complaints.Delete("/:id", staffOnly, cfg.Complaints.Delete)
	complaints.Get("/:id/history", cfg.Complaints.History)
	complaints.Post("/:id/attachments", citizenOnly, cfg.Complaints.AddAttachment)
	complaints.Delete("/:id/attachments/:attachmentId", citizenOnly, cfg.Complaints.RemoveAttachment)
	complaints.Post("/:id/info-requests", auth.RequireKind(domain.ActorKindEmployee), cfg.InfoRequests.Create)
	complaints.Get("/:id/info-requests", cfg.InfoRequests.List)

	requests := app.Group("/info-requests", cfg.AuthMiddleware.Handle)
	requests.Post("/:id/respond", citizenOnly, cfg.InfoRequests.Respond)
	requests.Post("/:id/cancel", staffOnly, cfg.InfoRequests.Cancel)
}
