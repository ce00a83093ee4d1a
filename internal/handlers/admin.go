package handlers

import (
	"errors"
	"net/url"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/cache"
	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"github.com/Ananth-NQI/segurobot-backend/internal/models"
	"github.com/Ananth-NQI/segurobot-backend/internal/services"
	"github.com/Ananth-NQI/segurobot-backend/internal/storage"
	"github.com/Ananth-NQI/segurobot-backend/internal/utils"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler handles admin operations
type AdminHandler struct {
	sessions     *services.SessionManager
	availability *services.Availability
	store        storage.Store
	dedup        *cache.DedupCache
	log          *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(sessions *services.SessionManager, availability *services.Availability, store storage.Store, dedup *cache.DedupCache, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		sessions:     sessions,
		availability: availability,
		store:        store,
		dedup:        dedup,
		log:          log,
	}
}

// GetStats returns session, counter and cache statistics
func (h *AdminHandler) GetStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"stats":   h.sessions.Stats(),
		"dedup":   h.dedup.Stats(),
	})
}

// ResetStats zeroes the message and user counters
func (h *AdminHandler) ResetStats(c *fiber.Ctx) error {
	h.sessions.ResetStats()
	h.log.Info("Stats reset from admin")
	return c.JSON(fiber.Map{"success": true})
}

// EnableBot resumes automated replies
func (h *AdminHandler) EnableBot(c *fiber.Ctx) error {
	h.availability.Enable()
	return c.JSON(fiber.Map{"success": true, "bot_active": true})
}

// DisableBot pauses automated replies, optionally for a number of minutes
func (h *AdminHandler) DisableBot(c *fiber.Ctx) error {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	if req.Minutes < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "minutes must not be negative",
		})
	}

	resumeAt := h.availability.Disable(time.Duration(req.Minutes) * time.Minute)
	return c.JSON(fiber.Map{
		"success":    true,
		"bot_active": false,
		"resume_at":  resumeAt,
	})
}

// ListSessions returns every session, most recently active first
func (h *AdminHandler) ListSessions(c *fiber.Ctx) error {
	sessions := h.sessions.ListSessions()
	return c.JSON(fiber.Map{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession returns one session by address
func (h *AdminHandler) GetSession(c *fiber.Ctx) error {
	address, err := addressParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid address"})
	}
	s, err := h.sessions.Get(address)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	return c.JSON(fiber.Map{"success": true, "session": s})
}

// DeleteSession forgets a session so the next message starts fresh
func (h *AdminHandler) DeleteSession(c *fiber.Ctx) error {
	address, err := addressParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid address"})
	}
	if !h.sessions.Remove(address) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	h.log.Info("Session removed from admin", "address", address)
	return c.JSON(fiber.Map{"success": true})
}

// FlushState writes the current snapshot now
func (h *AdminHandler) FlushState(c *fiber.Ctx) error {
	if err := h.sessions.Flush(c.UserContext()); err != nil {
		h.log.Error("Manual flush failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save state"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// BackupState writes a timestamped copy of the state
func (h *AdminHandler) BackupState(c *fiber.Ctx) error {
	location, err := h.sessions.Backup(c.UserContext())
	if err != nil {
		h.log.Error("Manual backup failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to write backup"})
	}
	return c.JSON(fiber.Map{"success": true, "location": location})
}

// ClearDedup empties the duplicate-event cache
func (h *AdminHandler) ClearDedup(c *fiber.Ctx) error {
	h.dedup.Clear()
	return c.JSON(fiber.Map{"success": true})
}

// ListQuotes returns exported quote records, newest first
func (h *AdminHandler) ListQuotes(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var (
		quotes []*models.QuoteRecord
		err    error
	)
	if phone := c.Query("phone"); phone != "" {
		quotes, err = h.store.GetQuotesByPhone(phone)
	} else {
		quotes, err = h.store.ListQuotes(limit)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch quotes"})
	}
	return c.JSON(fiber.Map{"success": true, "quotes": quotes, "count": len(quotes)})
}

// ListTickets returns support tickets, optionally filtered by status
func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.store.ListSupportTickets(c.Query("status"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tickets"})
	}
	return c.JSON(fiber.Map{"success": true, "tickets": tickets, "count": len(tickets)})
}

// ResolveTicket marks a ticket as resolved
func (h *AdminHandler) ResolveTicket(c *fiber.Ctx) error {
	ticket, err := h.store.GetSupportTicket(c.Params("ticketID"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Ticket not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch ticket"})
	}

	now := time.Now()
	ticket.Status = models.TicketStatusResolved
	ticket.ResolvedAt = &now
	if err := h.store.UpdateSupportTicket(ticket); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update ticket"})
	}
	h.log.Info("Ticket resolved", "ticket", ticket.TicketID)
	return c.JSON(fiber.Map{"success": true, "ticket": ticket})
}

// addressParam decodes the :address route parameter; a bare phone number
// gets the whatsapp: prefix sessions are keyed by.
func addressParam(c *fiber.Ctx) (string, error) {
	address, err := url.PathUnescape(c.Params("address"))
	if err != nil {
		return "", err
	}
	return utils.CanonicalAddress(address), nil
}
