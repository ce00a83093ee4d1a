package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequireAdminToken guards the control surface with a shared token, sent as
// "Authorization: Bearer <token>" or "X-Admin-Token". With an empty token the
// routes stay open when allowOpen is set and are refused otherwise.
func RequireAdminToken(token string, allowOpen bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			if allowOpen {
				return c.Next()
			}
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Admin access is not configured",
			})
		}

		got := c.Get("X-Admin-Token")
		if auth := c.Get(fiber.HeaderAuthorization); got == "" && strings.HasPrefix(auth, "Bearer ") {
			got = strings.TrimPrefix(auth, "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid admin token",
			})
		}
		return c.Next()
	}
}
