package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/query"
	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/pkg/logger"
)

type TurnRunner interface {
	RunTurn(ctx context.Context, userID, question string, ts time.Time) (*query.TurnResult, error)
}

type ChatHistoryStore interface {
	GetChatHistory(ctx context.Context, userID string) ([]models.ChatExchange, error)
}

type ChatHandler struct {
	engine TurnRunner
	chats  ChatHistoryStore
	now    func() time.Time
}

type chatRequest struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp"`
}

type lessonRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type chatResponse struct {
	Role              string       `json:"role"`
	Content           string       `json:"content"`
	RecommendedLesson *lessonRef   `json:"recommended_lesson"`
	Metrics           *turnMetrics `json:"metrics,omitempty"`
}

type turnMetrics struct {
	TotalMS         int64   `json:"total_ms"`
	RetrievalMS     int64   `json:"retrieval_ms"`
	GenerationMS    int64   `json:"generation_ms"`
	Tokens          int     `json:"tokens"`
	TokensPerSecond float64 `json:"tokens_per_second"`
}

type chatExchangeResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatHandler(engine TurnRunner, chats ChatHistoryStore) *ChatHandler {
	return &ChatHandler{
		engine: engine,
		chats:  chats,
		now:    time.Now,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Role != models.RoleUser {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "role must be \"user\"",
		})
	}

	ts := h.now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}

	result, err := h.engine.RunTurn(c.Context(), userID(c), req.Content, ts)
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuestion) || errors.Is(err, query.ErrQuestionTooLong) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(chatResponse{
			Role:    "system",
			Content: "internal error: " + err.Error(),
		})
	}

	return c.JSON(newChatResponse(result))
}

func (h *ChatHandler) GetChatHistory(c *fiber.Ctx) error {
	exchanges, err := h.chats.GetChatHistory(c.Context(), userID(c))
	if err != nil {
		logger.Error("Failed to load chat history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chat history",
		})
	}

	history := make([]chatExchangeResponse, 0, len(exchanges))
	for _, e := range exchanges {
		history = append(history, chatExchangeResponse{
			ID:        e.ID,
			Role:      e.Role,
			Content:   e.Content,
			Timestamp: e.Timestamp,
		})
	}

	return c.JSON(fiber.Map{
		"history": history,
	})
}

func newChatResponse(result *query.TurnResult) chatResponse {
	resp := chatResponse{
		Role:    models.RoleAssistant,
		Content: result.Answer,
		Metrics: &turnMetrics{
			TotalMS:         result.Metrics.Total.Milliseconds(),
			RetrievalMS:     result.Metrics.Retrieval.Milliseconds(),
			GenerationMS:    result.Metrics.Generation.Milliseconds(),
			Tokens:          result.Metrics.Tokens,
			TokensPerSecond: result.Metrics.TokensPerSecond,
		},
	}
	if l := result.Recommendation; l != nil {
		resp.RecommendedLesson = &lessonRef{ID: l.ID, Title: l.Title}
	}
	return resp
}
