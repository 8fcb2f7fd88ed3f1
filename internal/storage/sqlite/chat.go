package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/pkg/logger"
)

func (c *Client) AppendChat(ctx context.Context, exchange *models.ChatExchange) error {
	if exchange.ID == "" {
		exchange.ID = uuid.New().String()
	}

	query := `
		INSERT INTO chat_logs (id, seq, user_id, role, content, timestamp)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_logs), ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		exchange.ID,
		exchange.UserID,
		exchange.Role,
		exchange.Content,
		toUnixNano(exchange.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to append chat exchange: %w", err)
	}

	logger.Debug("Chat exchange recorded",
		zap.String("user_id", exchange.UserID),
		zap.String("role", exchange.Role),
	)
	return nil
}

// GetRecentChat returns the newest limit exchanges ordered oldest to newest.
func (c *Client) GetRecentChat(ctx context.Context, userID string, limit int) ([]models.ChatExchange, error) {
	query := `
		SELECT id, user_id, role, content, timestamp FROM (
			SELECT id, seq, user_id, role, content, timestamp
			FROM chat_logs
			WHERE user_id = ?
			ORDER BY timestamp DESC, seq DESC
			LIMIT ?
		) ORDER BY timestamp ASC, seq ASC
	`

	return c.queryChat(ctx, query, userID, limit)
}

// GetChatHistory returns every exchange of the user, newest first.
func (c *Client) GetChatHistory(ctx context.Context, userID string) ([]models.ChatExchange, error) {
	query := `
		SELECT id, user_id, role, content, timestamp
		FROM chat_logs
		WHERE user_id = ?
		ORDER BY timestamp DESC, seq DESC
	`

	return c.queryChat(ctx, query, userID)
}

func (c *Client) queryChat(ctx context.Context, query string, args ...any) ([]models.ChatExchange, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat logs: %w", err)
	}
	defer rows.Close()

	exchanges := []models.ChatExchange{}
	for rows.Next() {
		var e models.ChatExchange
		var ts int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Role, &e.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		e.Timestamp = fromUnixNano(ts)
		exchanges = append(exchanges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat logs: %w", err)
	}

	return exchanges, nil
}
