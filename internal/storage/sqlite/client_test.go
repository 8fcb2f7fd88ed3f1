package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morph-tutor/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(filepath.Join(t.TempDir(), "nested", "morph.db"))
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	c := newTestClient(t)
	require.NoError(t, c.InitSchema())
	require.NoError(t, c.Ping(context.Background()))
}

func TestLessonCatalog(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	dart, err := c.GetOrCreateLesson(ctx, "Dart")
	require.NoError(t, err)
	again, err := c.GetOrCreateLesson(ctx, "Dart")
	require.NoError(t, err)
	assert.Equal(t, dart.ID, again.ID)

	_, err = c.GetOrCreateLesson(ctx, "Flutter")
	require.NoError(t, err)

	require.NoError(t, c.ReplacePages(ctx, dart.ID, []models.Page{
		{Number: 2, Title: "Variables", Filename: "2.Variables.md", FileURL: "/media/lessons/dart/2.Variables.md"},
		{Number: 1, Title: "Intro", Filename: "1.Intro.md", FileURL: "/media/lessons/dart/1.Intro.md"},
	}))

	lessons, err := c.GetAllLessons(ctx)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "Dart", lessons[0].Title)
	assert.Equal(t, "Flutter", lessons[1].Title)
	require.Len(t, lessons[0].Pages, 2)
	assert.Equal(t, 1, lessons[0].Pages[0].Number)
	assert.Equal(t, "Variables", lessons[0].Pages[1].Title)
	assert.Empty(t, lessons[1].Pages)

	titles, err := c.GetLessonTitles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dart", "Flutter"}, titles)

	// replacing drops pages that are no longer present
	require.NoError(t, c.ReplacePages(ctx, dart.ID, []models.Page{
		{Number: 1, Title: "Intro", Filename: "1.Intro.md", FileURL: "/x"},
	}))
	pages, err := c.GetPages(ctx, dart.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestGetLessonByTitle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	created, err := c.GetOrCreateLesson(ctx, "Dart")
	require.NoError(t, err)

	found, err := c.GetLessonByTitle(ctx, "dART")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = c.GetLessonByTitle(ctx, "Rust")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPage(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	l, err := c.GetOrCreateLesson(ctx, "Dart")
	require.NoError(t, err)
	require.NoError(t, c.ReplacePages(ctx, l.ID, []models.Page{
		{Number: 3, Title: "Functions", Filename: "3.Functions.md", FileURL: "/media/lessons/dart/3.Functions.md"},
	}))

	p, err := c.GetPage(ctx, l.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, "Functions", p.Title)

	_, err = c.GetPage(ctx, l.ID, 4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryUpsertKeepsOneEntryPerTitle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	_, err := c.UpsertHistory(ctx, "u1", "Dart", 2, base)
	require.NoError(t, err)
	_, err = c.UpsertHistory(ctx, "u1", "Flutter", 1, base.Add(time.Hour))
	require.NoError(t, err)
	_, err = c.UpsertHistory(ctx, "u1", "Dart", 4, base.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = c.UpsertHistory(ctx, "u2", "Dart", 9, base)
	require.NoError(t, err)

	entries, err := c.GetRecentHistory(ctx, "u1", 20)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Dart", entries[0].Title)
	assert.Equal(t, 4, entries[0].Page)
	assert.True(t, entries[0].VisitedAt.Equal(base.Add(2*time.Hour)))
	assert.Equal(t, "Flutter", entries[1].Title)

	limited, err := c.GetRecentHistory(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := c.GetRecentHistory(ctx, "nobody", 20)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChatLogOrdering(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		require.NoError(t, c.AppendChat(ctx, &models.ChatExchange{
			UserID:    "u1",
			Role:      role,
			Content:   string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, c.AppendChat(ctx, &models.ChatExchange{
		UserID: "u2", Role: models.RoleUser, Content: "other", Timestamp: base,
	}))

	recent, err := c.GetRecentChat(ctx, "u1", 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, "c", recent[0].Content)
	assert.Equal(t, "f", recent[3].Content)
	assert.NotEmpty(t, recent[0].ID)

	history, err := c.GetChatHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Equal(t, "f", history[0].Content)
	assert.Equal(t, "a", history[5].Content)
}

func TestChatLogEqualTimestampsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, c.AppendChat(ctx, &models.ChatExchange{UserID: "u1", Role: models.RoleUser, Content: "q", Timestamp: ts}))
	require.NoError(t, c.AppendChat(ctx, &models.ChatExchange{UserID: "u1", Role: models.RoleAssistant, Content: "a", Timestamp: ts}))

	recent, err := c.GetRecentChat(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, models.RoleUser, recent[0].Role)
	assert.Equal(t, models.RoleAssistant, recent[1].Role)
}

func TestChatLogRejectsUnknownRole(t *testing.T) {
	c := newTestClient(t)
	err := c.AppendChat(context.Background(), &models.ChatExchange{
		UserID: "u1", Role: "system", Content: "x", Timestamp: time.Now(),
	})
	assert.Error(t, err)
}
