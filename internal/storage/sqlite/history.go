package sqlite

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/pkg/logger"
)

// GetRecentHistory returns the user's lesson progress, most recently visited first.
func (c *Client) GetRecentHistory(ctx context.Context, userID string, limit int) ([]models.LearningHistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
		SELECT user_id, title, page, visited_at
		FROM lesson_progress
		WHERE user_id = ?
		ORDER BY visited_at DESC, id DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get learning history: %w", err)
	}
	defer rows.Close()

	entries := []models.LearningHistoryEntry{}
	for rows.Next() {
		var e models.LearningHistoryEntry
		var visitedAt int64
		if err := rows.Scan(&e.UserID, &e.Title, &e.Page, &visitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.VisitedAt = fromUnixNano(visitedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return entries, nil
}

// UpsertHistory records a visit; a second visit to the same lesson title moves
// the existing entry instead of adding one.
func (c *Client) UpsertHistory(ctx context.Context, userID, title string, page int, visitedAt time.Time) (*models.LearningHistoryEntry, error) {
	query := `
		INSERT INTO lesson_progress (user_id, title, page, visited_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, title) DO UPDATE SET
			page = excluded.page,
			visited_at = excluded.visited_at
	`

	if _, err := c.db.ExecContext(ctx, query, userID, title, page, toUnixNano(visitedAt)); err != nil {
		return nil, fmt.Errorf("failed to upsert history: %w", err)
	}

	logger.Debug("Learning history updated",
		zap.String("user_id", userID),
		zap.String("title", title),
		zap.Int("page", page),
	)

	return &models.LearningHistoryEntry{
		UserID:    userID,
		Title:     title,
		Page:      page,
		VisitedAt: visitedAt.UTC(),
	}, nil
}
