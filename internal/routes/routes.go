package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/usil/eventhos-relay/internal/handlers"
)

// SetupRoutes configures all application routes with dependencies
func SetupRoutes(app *fiber.App, eventHandler *handlers.EventHandler, auditHandler *handlers.AuditHandler, healthHandler *handlers.HealthHandler) {
	// Health check endpoint
	app.Get("/health", healthHandler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// Event receive endpoint; producers may notify with GET or POST
		api.Get("/event", eventHandler.ReceiveEvent)
		api.Post("/event", eventHandler.ReceiveEvent)

		// Execution audit trail
		api.Get("/received-events", auditHandler.GetReceivedEvents)
		api.Get("/received-events/:id/executions", auditHandler.GetExecutions)
	}
}
