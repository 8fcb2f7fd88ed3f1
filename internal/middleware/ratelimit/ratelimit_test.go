package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(rl *RateLimiter) *fiber.App {
	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func get(t *testing.T, app *fiber.App, userID string) int {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestMiddlewareLimitsPerUser(t *testing.T) {
	rl := New(Config{RequestsPerMinute: 1, Burst: 2})
	defer rl.Stop()
	app := newApp(rl)

	assert.Equal(t, fiber.StatusOK, get(t, app, "alice"))
	assert.Equal(t, fiber.StatusOK, get(t, app, "alice"))
	assert.Equal(t, fiber.StatusTooManyRequests, get(t, app, "alice"))

	// other callers have their own bucket
	assert.Equal(t, fiber.StatusOK, get(t, app, "bob"))
}

func TestAllowRefillsOverTime(t *testing.T) {
	rl := New(Config{RequestsPerMinute: 60, Burst: 1})
	defer rl.Stop()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u"))
	assert.False(t, rl.Allow("u"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("u"))
}

func TestEvictIdle(t *testing.T) {
	rl := New(Config{})
	defer rl.Stop()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("u")

	now = now.Add(11 * time.Minute)
	rl.evictIdle()
	assert.Empty(t, rl.visitors)

	rl.Stop()
}
