package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/query"
	"github.com/morph-tutor/backend/pkg/logger"
)

type MessageLimiter interface {
	Allow(key string) bool
}

type WebSocketHandler struct {
	engine      TurnRunner
	turnTimeout time.Duration
	limiter     MessageLimiter
}

type wsMessage struct {
	Type      string     `json:"type"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp"`
}

func NewWebSocketHandler(engine TurnRunner, turnTimeout time.Duration) *WebSocketHandler {
	if turnTimeout <= 0 {
		turnTimeout = 2 * time.Minute
	}
	return &WebSocketHandler{
		engine:      engine,
		turnTimeout: turnTimeout,
	}
}

// WithLimiter applies limiter to every chat message of a connection, keyed by
// user id.
func (h *WebSocketHandler) WithLimiter(limiter MessageLimiter) *WebSocketHandler {
	h.limiter = limiter
	return h
}

// Upgrade admits websocket handshakes that carry a user id, either in the
// X-User-ID header or the user_id query parameter for browser clients.
func (h *WebSocketHandler) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		id := strings.TrimSpace(c.Get(UserIDHeader))
		if id == "" {
			id = strings.TrimSpace(c.Query("user_id"))
		}
		if id == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": UserIDHeader + " header is required",
			})
		}

		c.Locals(userIDLocal, id)
		return c.Next()
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	userID, _ := c.Locals(userIDLocal).(string)
	logger.Info("WebSocket connection established", zap.String("user_id", userID))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("user_id", userID))
	}()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "chat" {
			continue
		}

		if h.limiter != nil && !h.limiter.Allow(userID) {
			logger.Warn("WebSocket rate limit exceeded", zap.String("user_id", userID))
			if err := h.send(c, fiber.Map{"type": "error", "error": "Rate limit exceeded. Please try again later."}); err != nil {
				break
			}
			continue
		}

		ts := time.Now().UTC()
		if msg.Timestamp != nil {
			ts = msg.Timestamp.UTC()
		}

		if err := h.streamResponse(c, userID, msg.Content, ts); err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, userID, question string, ts time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.turnTimeout)
	defer cancel()

	if err := h.send(c, fiber.Map{"type": "status", "content": "Thinking..."}); err != nil {
		return err
	}

	result, err := h.engine.RunTurn(ctx, userID, question, ts)
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuestion) || errors.Is(err, query.ErrQuestionTooLong) {
			return h.send(c, fiber.Map{"type": "error", "error": err.Error()})
		}
		return h.send(c, fiber.Map{
			"type":    "error",
			"role":    "system",
			"content": "internal error: " + err.Error(),
		})
	}

	words := splitIntoWords(result.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}
		if err := h.send(c, fiber.Map{"type": "chunk", "content": chunk}); err != nil {
			return err
		}
	}

	resp := newChatResponse(result)
	return h.send(c, fiber.Map{
		"type":               "complete",
		"role":               resp.Role,
		"content":            resp.Content,
		"recommended_lesson": resp.RecommendedLesson,
		"metrics":            resp.Metrics,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msg fiber.Map) error {
	return c.WriteJSON(msg)
}

// splitIntoWords splits on spaces and keeps each newline as its own token so
// the client can rebuild line breaks.
func splitIntoWords(text string) []string {
	words := []string{}
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch r {
		case ' ', '\t':
			flush()
		case '\n':
			flush()
			words = append(words, "\n")
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return words
}
