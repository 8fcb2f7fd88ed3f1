package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	UserIDHeader = "X-User-ID"
	userIDLocal  = "user_id"
)

// RequireUser rejects requests without a caller identity and stores it for the
// handlers behind it.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(UserIDHeader))
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": UserIDHeader + " header is required",
			})
		}
		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

func userID(c *fiber.Ctx) string {
	if v, ok := c.Locals(userIDLocal).(string); ok {
		return v
	}
	return strings.TrimSpace(c.Get(UserIDHeader))
}
