package handlers

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/internal/storage/sqlite"
	"github.com/morph-tutor/backend/pkg/logger"
)

type LessonStore interface {
	GetAllLessons(ctx context.Context) ([]models.Lesson, error)
	GetLessonTitles(ctx context.Context) ([]string, error)
	GetLessonByTitle(ctx context.Context, title string) (*models.Lesson, error)
	GetPage(ctx context.Context, lessonID int64, number int) (*models.Page, error)
}

type LessonHandler struct {
	store LessonStore
}

type pageResponse struct {
	Page     int    `json:"page"`
	Title    string `json:"title"`
	Filename string `json:"filename"`
	FileURL  string `json:"file_url"`
}

type lessonResponse struct {
	ID    int64          `json:"id"`
	Title string         `json:"title"`
	Pages []pageResponse `json:"pages"`
}

func NewLessonHandler(store LessonStore) *LessonHandler {
	return &LessonHandler{store: store}
}

func (h *LessonHandler) ListLessons(c *fiber.Ctx) error {
	if c.QueryBool("only_titles") {
		titles, err := h.store.GetLessonTitles(c.Context())
		if err != nil {
			logger.Error("Failed to list lesson titles", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to list lessons",
			})
		}
		return c.JSON(fiber.Map{"titles": titles})
	}

	lessons, err := h.store.GetAllLessons(c.Context())
	if err != nil {
		logger.Error("Failed to list lessons", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list lessons",
		})
	}

	resp := make([]lessonResponse, 0, len(lessons))
	for _, l := range lessons {
		lr := lessonResponse{ID: l.ID, Title: l.Title, Pages: make([]pageResponse, 0, len(l.Pages))}
		for _, p := range l.Pages {
			lr.Pages = append(lr.Pages, newPageResponse(p))
		}
		resp = append(resp, lr)
	}

	return c.JSON(fiber.Map{"lessons": resp})
}

func (h *LessonHandler) GetPage(c *fiber.Ctx) error {
	title, err := url.PathUnescape(c.Params("title"))
	if err != nil || title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid lesson title",
		})
	}

	number, err := strconv.Atoi(c.Params("page"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "page must be an integer",
		})
	}

	lesson, err := h.store.GetLessonByTitle(c.Context(), title)
	if err != nil {
		return h.lookupError(c, err, "Lesson not found")
	}

	page, err := h.store.GetPage(c.Context(), lesson.ID, number)
	if err != nil {
		return h.lookupError(c, err, "Page not found")
	}

	return c.JSON(fiber.Map{
		"lesson": lessonRef{ID: lesson.ID, Title: lesson.Title},
		"page":   newPageResponse(*page),
	})
}

func (h *LessonHandler) lookupError(c *fiber.Ctx, err error, notFound string) error {
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": notFound})
	}
	logger.Error("Failed to look up lesson page", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to look up lesson page",
	})
}

func newPageResponse(p models.Page) pageResponse {
	return pageResponse{
		Page:     p.Number,
		Title:    p.Title,
		Filename: p.Filename,
		FileURL:  p.FileURL,
	}
}
