package middleware

import (
	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/client"
)

// ValidateTwilioSignature rejects webhook calls whose X-Twilio-Signature does
// not match the request. publicURL is the externally visible webhook URL;
// when empty it is rebuilt from the request, which is only correct when no
// proxy rewrites scheme or host.
func ValidateTwilioSignature(authToken, publicURL string, log *logger.Logger) fiber.Handler {
	validator := client.NewRequestValidator(authToken)

	return func(c *fiber.Ctx) error {
		signature := c.Get("X-Twilio-Signature")
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}

		if authToken == "" {
			log.Error("TWILIO_AUTH_TOKEN not set, cannot validate webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		params := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})

		if !validator.Validate(webhookURL(c, publicURL), params, signature) {
			log.Warn("Invalid Twilio signature", "path", c.Path(), "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

// webhookURL returns the URL Twilio signed
func webhookURL(c *fiber.Ctx, publicURL string) string {
	if publicURL != "" {
		return publicURL
	}
	return c.BaseURL() + c.OriginalURL()
}
