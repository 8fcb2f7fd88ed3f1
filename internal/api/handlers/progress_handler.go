package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/pkg/logger"
)

type ProgressStore interface {
	GetRecentHistory(ctx context.Context, userID string, limit int) ([]models.LearningHistoryEntry, error)
	UpsertHistory(ctx context.Context, userID, title string, page int, visitedAt time.Time) (*models.LearningHistoryEntry, error)
}

type ProgressHandler struct {
	store ProgressStore
	now   func() time.Time
}

type progressRequest struct {
	Title string `json:"title"`
	Page  *int   `json:"page"`
}

type progressResponse struct {
	Title     string    `json:"title"`
	Page      int       `json:"page"`
	VisitedAt time.Time `json:"visited_at"`
}

func NewProgressHandler(store ProgressStore) *ProgressHandler {
	return &ProgressHandler{store: store, now: time.Now}
}

func (h *ProgressHandler) RecordProgress(c *fiber.Ctx) error {
	var req progressRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	title := strings.TrimSpace(req.Title)
	if title == "" || req.Page == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title and page are required",
		})
	}

	entry, err := h.store.UpsertHistory(c.Context(), userID(c), title, *req.Page, h.now().UTC())
	if err != nil {
		logger.Error("Failed to record progress", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record progress",
		})
	}

	return c.JSON(newProgressResponse(*entry))
}

func (h *ProgressHandler) GetProgress(c *fiber.Ctx) error {
	entries, err := h.store.GetRecentHistory(c.Context(), userID(c), 0)
	if err != nil {
		logger.Error("Failed to load progress", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load progress",
		})
	}

	progress := make([]progressResponse, 0, len(entries))
	for _, e := range entries {
		progress = append(progress, newProgressResponse(e))
	}

	return c.JSON(fiber.Map{"progress": progress})
}

func newProgressResponse(e models.LearningHistoryEntry) progressResponse {
	return progressResponse{Title: e.Title, Page: e.Page, VisitedAt: e.VisitedAt}
}
