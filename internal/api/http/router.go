package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/observability"
)

// multipartOverhead is the body allowance on top of the attachment ceiling
// for multipart boundaries and headers.
const multipartOverhead = 1 << 20

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Attachments    *handlers.AttachmentsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	MetricsPath    string
}

// NewFiberConfig returns the app settings. The body limit leaves room above
// the attachment ceiling so oversize uploads reach the ledger and get a
// PAYLOAD_TOO_LARGE error instead of a transport reset.
func NewFiberConfig(appName string, maxAttachmentBytes int64, errorHandler fiber.ErrorHandler) fiber.Config {
	return fiber.Config{
		AppName:               appName,
		BodyLimit:             int(maxAttachmentBytes) + multipartOverhead,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	}
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireIdentity())
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id/priority", cfg.Tickets.UpdatePriority)
	tickets.Patch("/:id/assignee", cfg.Tickets.UpdateAssignee)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)

	tickets.Get("/:id/attachments", cfg.Attachments.List)
	tickets.Post("/:id/attachments", cfg.Attachments.Upload)
	tickets.Get("/:id/attachments/:attachmentId", cfg.Attachments.Download)
	tickets.Delete("/:id/attachments/:attachmentId", cfg.Attachments.Delete)
}
