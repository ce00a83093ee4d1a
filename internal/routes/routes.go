package routes

import (
	"github.com/Ananth-NQI/segurobot-backend/internal/config"
	"github.com/Ananth-NQI/segurobot-backend/internal/handlers"
	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"github.com/Ananth-NQI/segurobot-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Handlers bundles everything the routes dispatch to
type Handlers struct {
	WhatsApp *handlers.WhatsAppHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, h Handlers, log *logger.Logger) {

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "SeguroBot Backend",
			"version": h.Health.Version,
			"endpoints": fiber.Map{
				"health":        "/health",
				"webhook":       "/webhook/whatsapp",
				"test_whatsapp": "/test/whatsapp",
				"admin":         "/admin",
			},
		})
	})

	app.Get("/health", h.Health.Check)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	if cfg.Twilio.ValidateSignature {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(cfg.Twilio.AuthToken, cfg.Twilio.WebhookURL, log), h.WhatsApp.HandleWebhook)
	} else {
		// Development: skip validation for ngrok
		log.Warn("⚠️  WhatsApp webhook validation DISABLED")
		webhooks.Post("/whatsapp", h.WhatsApp.HandleWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	if !cfg.IsProduction() {
		app.Post("/test/whatsapp", h.WhatsApp.HandleTestWebhook)
	}

	// ========== ADMIN ROUTES ==========
	admin := app.Group("/admin", middleware.RequireAdminToken(cfg.AdminToken, !cfg.IsProduction()))

	admin.Get("/stats", h.Admin.GetStats)
	admin.Post("/stats/reset", h.Admin.ResetStats)

	admin.Post("/bot/enable", h.Admin.EnableBot)
	admin.Post("/bot/disable", h.Admin.DisableBot)

	admin.Get("/sessions", h.Admin.ListSessions)
	admin.Get("/sessions/:address", h.Admin.GetSession)
	admin.Delete("/sessions/:address", h.Admin.DeleteSession)

	admin.Post("/state/flush", h.Admin.FlushState)
	admin.Post("/state/backup", h.Admin.BackupState)
	admin.Post("/cache/clear", h.Admin.ClearDedup)

	admin.Get("/quotes", h.Admin.ListQuotes)
	admin.Get("/tickets", h.Admin.ListTickets)
	admin.Put("/tickets/:ticketID/resolve", h.Admin.ResolveTicket)
}
