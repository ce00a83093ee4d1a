package handlers

import (
	"github.com/Ananth-NQI/segurobot-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	Version          string
	db               *gorm.DB
	sessions         *services.SessionManager
	twilioConfigured bool
}

// NewHealthHandler creates a new health handler. db may be nil when the
// in-memory store is used.
func NewHealthHandler(version string, db *gorm.DB, sessions *services.SessionManager, twilioConfigured bool) *HealthHandler {
	return &HealthHandler{
		Version:          version,
		db:               db,
		sessions:         sessions,
		twilioConfigured: twilioConfigured,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK

	dbStatus := "not configured"
	if h.db != nil {
		dbStatus = "connected"
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			dbStatus = "error: " + err.Error()
			status = "unhealthy"
			code = fiber.StatusServiceUnavailable
		}
	}

	stats := h.sessions.Stats()
	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"service": "SeguroBot Backend",
		"version": h.Version,
		"services": fiber.Map{
			"database":   dbStatus,
			"twilio":     h.twilioConfigured,
			"bot_active": stats.BotActive,
			"sessions":   stats.TotalSessions,
		},
	})
}
