package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	csp := contentSecurityPolicy(cfg.AllowedOrigins)

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Set("Content-Security-Policy", csp)

		return c.Next()
	}
}

// The API only serves JSON, lesson markdown and the chat socket, so the
// policy is locked down except for connect-src.
func contentSecurityPolicy(origins []string) string {
	directives := []string{
		"default-src 'none'",
		"connect-src " + strings.Join(connectSources(origins), " "),
		"frame-ancestors 'none'",
		"base-uri 'none'",
		"form-action 'none'",
	}
	return strings.Join(directives, "; ")
}

// connectSources allows each configured origin plus its websocket scheme.
func connectSources(origins []string) []string {
	sources := []string{"'self'"}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "" || origin == "*":
			continue
		case strings.HasPrefix(origin, "https://"):
			sources = append(sources, origin, "wss://"+strings.TrimPrefix(origin, "https://"))
		case strings.HasPrefix(origin, "http://"):
			sources = append(sources, origin, "ws://"+strings.TrimPrefix(origin, "http://"))
		default:
			sources = append(sources, origin)
		}
	}
	return sources
}
