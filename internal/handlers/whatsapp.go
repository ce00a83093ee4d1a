package handlers

import (
	"github.com/Ananth-NQI/segurobot-backend/internal/flows"
	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"github.com/Ananth-NQI/segurobot-backend/internal/services"
	"github.com/Ananth-NQI/segurobot-backend/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	router   *flows.FlowRouter
	sessions *services.SessionManager
	log      *logger.Logger
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(router *flows.FlowRouter, sessions *services.SessionManager, log *logger.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{
		router:   router,
		sessions: sessions,
		log:      log,
	}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid    string `form:"MessageSid"`
	AccountSid    string `form:"AccountSid"`
	From          string `form:"From"` // whatsapp:+5511999990001
	To            string `form:"To"`
	Body          string `form:"Body"`
	ProfileName   string `form:"ProfileName"`
	MessageType   string `form:"MessageType"` // text, interactive, button, image...
	ButtonPayload string `form:"ButtonPayload"`
	ListID        string `form:"ListId"`
	ListTitle     string `form:"ListTitle"`
	MessageStatus string `form:"MessageStatus"` // set on delivery status callbacks only
	NumMedia      string `form:"NumMedia"`
}

// Event maps the Twilio payload onto a router event
func (p TwilioWebhookPayload) Event() flows.Event {
	reply := p.ListID
	if reply == "" {
		reply = p.ButtonPayload
	}
	body := p.Body
	if body == "" {
		body = p.ListTitle
	}
	kind := p.MessageType
	if kind == "" {
		kind = "text"
	}
	return flows.Event{
		ID:      p.MessageSid,
		From:    utils.CanonicalAddress(p.From),
		Body:    body,
		Type:    kind,
		ReplyID: reply,
	}
}

// HandleWebhook processes incoming WhatsApp messages
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.log.Warn("Error parsing webhook", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// Delivery status callbacks share the endpoint
	if payload.MessageStatus != "" {
		h.log.Debug("Status callback", "sid", payload.MessageSid, "status", payload.MessageStatus)
		return c.SendStatus(fiber.StatusOK)
	}

	h.log.Info("📱 WhatsApp message", "from", payload.From, "sid", payload.MessageSid, "type", payload.MessageType)

	res, err := h.router.Handle(c.UserContext(), payload.Event())
	if err != nil {
		// The user already got an error reply; Twilio must not retry
		h.log.Error("Error processing message", "from", payload.From, "error", err)
	} else {
		h.log.Debug("Message processed", "from", payload.From, "result", string(res))
	}

	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload drives the engine without Twilio
type TestWebhookPayload struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Message string `json:"message"`
	ReplyID string `json:"reply_id"`
}

// HandleTestWebhook processes a message synchronously and returns the
// resulting session position (for development)
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}
	if payload.From == "" || (payload.Message == "" && payload.ReplyID == "") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from and message (or reply_id) are required",
		})
	}

	from := utils.CanonicalAddress(payload.From)
	id := payload.ID
	if id == "" {
		id = "test-" + uuid.NewString()
	}

	h.log.Info("🧪 Test webhook received", "from", from, "message", payload.Message, "reply_id", payload.ReplyID)

	res, err := h.router.Handle(c.UserContext(), flows.Event{
		ID:      id,
		From:    from,
		Body:    payload.Message,
		Type:    "text",
		ReplyID: payload.ReplyID,
	})

	resp := fiber.Map{
		"success": err == nil,
		"result":  res,
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	if s, getErr := h.sessions.Get(from); getErr == nil {
		resp["flow"] = s.CurrentFlow
		resp["step"] = s.CurrentStep
		resp["data"] = s.Data
	}
	return c.JSON(resp)
}
