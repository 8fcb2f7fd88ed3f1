package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morph-tutor/backend/internal/recommend"
	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/internal/storage/sqlite"
	"github.com/morph-tutor/backend/internal/vector"
)

type fakeRetriever struct {
	chunks []vector.Chunk
	err    error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) ([]vector.Chunk, error) {
	return f.chunks, f.err
}

type fakeGenerator struct {
	answer string
	err    error

	gotWindow  []models.ChatExchange
	gotContext string
}

func (f *fakeGenerator) Generate(ctx context.Context, window []models.ChatExchange, promptContext, question string) (string, error) {
	f.gotWindow = window
	f.gotContext = promptContext
	return f.answer, f.err
}

type staticTopics []string

func (s staticTopics) Topics() []string { return s }

func newStore(t *testing.T) *sqlite.Client {
	t.Helper()
	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "morph.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCatalog(t *testing.T, db *sqlite.Client) {
	t.Helper()
	ctx := context.Background()
	for _, title := range []string{"Python", "Dart"} {
		l, err := db.GetOrCreateLesson(ctx, title)
		require.NoError(t, err)
		require.NoError(t, db.ReplacePages(ctx, l.ID, []models.Page{
			{Number: 1, Title: "Core Syntax & Features", Filename: "1.Core_Syntax_&_Features.md", FileURL: "/x"},
		}))
	}
}

func newTestEngine(db *sqlite.Client, r Retriever, g Generator) *Engine {
	return NewEngine(r, db, db, g, recommend.NewDetector(db, recommend.English, 0),
		staticTopics{"Python", "Dart"}, Options{WindowSize: 10, HistoryLimit: 20, MaxQuestionSize: 100})
}

func TestRunTurnEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	seedCatalog(t, db)

	_, err := db.UpsertHistory(ctx, "u1", "Dart", 1, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = db.UpsertHistory(ctx, "u1", "Python", 3, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	gen := &fakeGenerator{answer: "I suggest you study Dart page 1 · Core Syntax & Features."}
	e := newTestEngine(db, &fakeRetriever{chunks: []vector.Chunk{{Text: "Dart basics"}}}, gen)

	asked := time.Now().Add(-time.Minute).UTC()
	res, err := e.RunTurn(ctx, "u1", "what should I learn next?", asked)
	require.NoError(t, err)

	assert.Equal(t, gen.answer, res.Answer)
	require.NotNil(t, res.Recommendation)
	assert.Equal(t, "Dart", res.Recommendation.Title)
	assert.Greater(t, res.Metrics.Tokens, 0)

	assert.Contains(t, gen.gotContext, "Most recent lesson: Python. The user was last on page 3. ")
	assert.Contains(t, gen.gotContext, "Allowed topics: Dart and Python.")
	assert.Contains(t, gen.gotContext, "Dart basics")
	assert.Empty(t, gen.gotWindow)

	logs, err := db.GetRecentChat(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.RoleUser, logs[0].Role)
	assert.Equal(t, "what should I learn next?", logs[0].Content)
	assert.True(t, logs[0].Timestamp.Equal(asked))
	assert.Equal(t, models.RoleAssistant, logs[1].Role)
	assert.False(t, logs[1].Timestamp.Before(logs[0].Timestamp))
}

func TestRunTurnGenerationFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)

	boom := errors.New("model timeout")
	e := newTestEngine(db, &fakeRetriever{}, &fakeGenerator{err: boom})

	_, err := e.RunTurn(ctx, "u1", "hello?", time.Time{})
	require.ErrorIs(t, err, boom)

	logs, err := db.GetChatHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestRunTurnRetrievalFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)

	boom := errors.New("index unavailable")
	gen := &fakeGenerator{answer: "unused"}
	e := newTestEngine(db, &fakeRetriever{err: boom}, gen)

	_, err := e.RunTurn(ctx, "u1", "hello?", time.Time{})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, gen.gotContext)

	logs, err := db.GetChatHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestRunTurnAnswerTimestampNotBeforeQuestion(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	e := newTestEngine(db, &fakeRetriever{}, &fakeGenerator{answer: "Have a nice day."})

	future := time.Now().Add(time.Hour).UTC()
	res, err := e.RunTurn(ctx, "u1", "hi", future)
	require.NoError(t, err)
	assert.Nil(t, res.Recommendation)

	logs, err := db.GetRecentChat(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[1].Timestamp.Equal(future))
	assert.Equal(t, models.RoleAssistant, logs[1].Role)
}

func TestRunTurnPassesChatWindow(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	gen := &fakeGenerator{answer: "ok"}
	e := NewEngine(&fakeRetriever{}, db, db, gen, recommend.NewDetector(db, recommend.English, 0),
		staticTopics{"Go"}, Options{WindowSize: 2})

	base := time.Now().Add(-time.Hour).UTC()
	for i, content := range []string{"q1", "a1", "q2"} {
		role := models.RoleUser
		if i == 1 {
			role = models.RoleAssistant
		}
		require.NoError(t, db.AppendChat(ctx, &models.ChatExchange{
			UserID: "u1", Role: role, Content: content, Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	_, err := e.RunTurn(ctx, "u1", "q3", time.Time{})
	require.NoError(t, err)
	require.Len(t, gen.gotWindow, 2)
	assert.Equal(t, "a1", gen.gotWindow[0].Content)
	assert.Equal(t, "q2", gen.gotWindow[1].Content)
}

func TestRunTurnValidatesQuestion(t *testing.T) {
	db := newStore(t)
	e := newTestEngine(db, &fakeRetriever{}, &fakeGenerator{answer: "ok"})

	_, err := e.RunTurn(context.Background(), "u1", "   ", time.Time{})
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	_, err = e.RunTurn(context.Background(), "u1", string(long), time.Time{})
	assert.ErrorIs(t, err, ErrQuestionTooLong)
}
