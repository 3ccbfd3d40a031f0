package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// RequireCronSecret guards scheduled-job endpoints with a shared bearer
// secret. An empty secret rejects every call.
func RequireCronSecret(secret string) fiber.Handler {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		log.Warn("[Cron] CRON_SECRET is not set, cron endpoints will reject all calls")
	}
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if secret == "" || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
