package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/pkg/logger"
)

// GetAllLessons returns every lesson in insertion order with its pages attached.
func (c *Client) GetAllLessons(ctx context.Context) ([]models.Lesson, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, title FROM lessons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get lessons: %w", err)
	}
	defer rows.Close()

	var lessons []models.Lesson
	for rows.Next() {
		var l models.Lesson
		if err := rows.Scan(&l.ID, &l.Title); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lessons: %w", err)
	}

	for i := range lessons {
		pages, err := c.GetPages(ctx, lessons[i].ID)
		if err != nil {
			return nil, err
		}
		lessons[i].Pages = pages
	}

	return lessons, nil
}

func (c *Client) GetLessonTitles(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT title FROM lessons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson titles: %w", err)
	}
	defer rows.Close()

	titles := []string{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan lesson title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

func (c *Client) GetPages(ctx context.Context, lessonID int64) ([]models.Page, error) {
	query := `SELECT id, lesson_id, page, title, filename, file_url FROM pages WHERE lesson_id = ? ORDER BY page`

	rows, err := c.db.QueryContext(ctx, query, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	pages := []models.Page{}
	for rows.Next() {
		var p models.Page
		if err := rows.Scan(&p.ID, &p.LessonID, &p.Number, &p.Title, &p.Filename, &p.FileURL); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pages: %w", err)
	}

	return pages, nil
}

// GetLessonByTitle matches the title case-insensitively.
func (c *Client) GetLessonByTitle(ctx context.Context, title string) (*models.Lesson, error) {
	var l models.Lesson
	err := c.db.QueryRowContext(ctx,
		`SELECT id, title FROM lessons WHERE title = ? COLLATE NOCASE ORDER BY id LIMIT 1`, title,
	).Scan(&l.ID, &l.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lesson %q: %w", title, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return &l, nil
}

func (c *Client) GetPage(ctx context.Context, lessonID int64, number int) (*models.Page, error) {
	var p models.Page
	err := c.db.QueryRowContext(ctx,
		`SELECT id, lesson_id, page, title, filename, file_url FROM pages WHERE lesson_id = ? AND page = ?`,
		lessonID, number,
	).Scan(&p.ID, &p.LessonID, &p.Number, &p.Title, &p.Filename, &p.FileURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %d: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &p, nil
}

func (c *Client) GetOrCreateLesson(ctx context.Context, title string) (*models.Lesson, error) {
	if _, err := c.db.ExecContext(ctx, `INSERT OR IGNORE INTO lessons (title) VALUES (?)`, title); err != nil {
		return nil, fmt.Errorf("failed to create lesson: %w", err)
	}

	var l models.Lesson
	err := c.db.QueryRowContext(ctx, `SELECT id, title FROM lessons WHERE title = ?`, title).Scan(&l.ID, &l.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return &l, nil
}

// ReplacePages swaps the full page set of a lesson in one transaction.
func (c *Client) ReplacePages(ctx context.Context, lessonID int64, pages []models.Page) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE lesson_id = ?`, lessonID); err != nil {
		return fmt.Errorf("failed to delete pages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pages (lesson_id, page, title, filename, file_url) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err := stmt.ExecContext(ctx, lessonID, p.Number, p.Title, p.Filename, p.FileURL); err != nil {
			return fmt.Errorf("failed to insert page %d: %w", p.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pages: %w", err)
	}

	logger.Debug("Lesson pages replaced", zap.Int64("lesson_id", lessonID), zap.Int("pages", len(pages)))
	return nil
}
