package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type Handlers struct {
	Chat      *ChatHandler
	Lessons   *LessonHandler
	Progress  *ProgressHandler
	Health    *HealthHandler
	WebSocket *WebSocketHandler
	Metrics   fiber.Handler
}

// Register mounts the API under /api/v1. The optional middlewares run in front
// of the identified routes and the websocket handshake.
func Register(app *fiber.App, h Handlers, middlewares ...fiber.Handler) {
	api := app.Group("/api/v1")

	api.Get("/health", h.Health.Health)
	api.Get("/ready", h.Health.Ready)
	if h.Metrics != nil {
		app.Get("/metrics", h.Metrics)
	}

	api.Get("/lessons", h.Lessons.ListLessons)
	api.Get("/lessons/:title/pages/:page", h.Lessons.GetPage)

	identified := func(handler fiber.Handler) []fiber.Handler {
		chain := append([]fiber.Handler{RequireUser()}, middlewares...)
		return append(chain, handler)
	}
	api.Post("/chat", identified(h.Chat.HandleChat)...)
	api.Get("/chat/history", identified(h.Chat.GetChatHistory)...)
	api.Post("/me/progress", identified(h.Progress.RecordProgress)...)
	api.Get("/me/progress", identified(h.Progress.GetProgress)...)

	if h.WebSocket != nil {
		chain := append([]fiber.Handler{}, middlewares...)
		chain = append(chain, h.WebSocket.Upgrade(), websocket.New(h.WebSocket.HandleConnection))
		app.Get("/ws/chat", chain...)
	}
}
