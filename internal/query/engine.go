package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/metrics"
	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/internal/vector"
	"github.com/morph-tutor/backend/pkg/logger"
)

var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrQuestionTooLong = errors.New("question is too long")
)

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]vector.Chunk, error)
}

type ChatStore interface {
	GetRecentChat(ctx context.Context, userID string, limit int) ([]models.ChatExchange, error)
	AppendChat(ctx context.Context, exchange *models.ChatExchange) error
}

type HistoryStore interface {
	GetRecentHistory(ctx context.Context, userID string, limit int) ([]models.LearningHistoryEntry, error)
}

type Generator interface {
	Generate(ctx context.Context, window []models.ChatExchange, promptContext, question string) (string, error)
}

type Recommender interface {
	Detect(ctx context.Context, answer string) *models.Lesson
}

type TopicSource interface {
	Topics() []string
}

type Options struct {
	WindowSize      int
	HistoryLimit    int
	MaxQuestionSize int
}

type Engine struct {
	retriever   Retriever
	chats       ChatStore
	history     HistoryStore
	generator   Generator
	recommender Recommender
	topics      TopicSource
	opts        Options
	now         func() time.Time
}

type TurnMetrics struct {
	Total           time.Duration
	Retrieval       time.Duration
	ContextBuild    time.Duration
	Generation      time.Duration
	Tokens          int
	TokensPerSecond float64
}

type TurnResult struct {
	Answer         string
	Recommendation *models.Lesson
	Metrics        TurnMetrics
}

func NewEngine(retriever Retriever, chats ChatStore, history HistoryStore, generator Generator,
	recommender Recommender, topics TopicSource, opts Options) *Engine {
	if opts.WindowSize <= 0 {
		opts.WindowSize = 10
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}

	return &Engine{
		retriever:   retriever,
		chats:       chats,
		history:     history,
		generator:   generator,
		recommender: recommender,
		topics:      topics,
		opts:        opts,
		now:         time.Now,
	}
}

// RunTurn answers one question. Nothing is persisted unless generation
// succeeds; the question row is written before the answer row and the answer
// timestamp is never earlier than ts.
func (e *Engine) RunTurn(ctx context.Context, userID, question string, ts time.Time) (*TurnResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if e.opts.MaxQuestionSize > 0 && utf8.RuneCountInString(question) > e.opts.MaxQuestionSize {
		return nil, ErrQuestionTooLong
	}

	start := e.now()
	result, err := e.runTurn(ctx, userID, question, ts, start)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("error").Inc()
		logger.Error("Chat turn failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	metrics.TurnsTotal.WithLabelValues("success").Inc()
	return result, nil
}

func (e *Engine) runTurn(ctx context.Context, userID, question string, ts, start time.Time) (*TurnResult, error) {
	retrievalStart := e.now()
	chunks, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	retrieval := e.now().Sub(retrievalStart)

	window, err := e.chats.GetRecentChat(ctx, userID, e.opts.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat window: %w", err)
	}

	contextStart := e.now()
	history, err := e.history.GetRecentHistory(ctx, userID, e.opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load learning history: %w", err)
	}
	promptContext := BuildContext(history, e.topics.Topics(), chunks)
	contextBuild := e.now().Sub(contextStart)

	generationStart := e.now()
	answer, err := e.generator.Generate(ctx, window, promptContext, question)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	generation := e.now().Sub(generationStart)

	if ts.IsZero() {
		ts = e.now()
	}
	if err := e.chats.AppendChat(ctx, &models.ChatExchange{
		UserID:    userID,
		Role:      models.RoleUser,
		Content:   question,
		Timestamp: ts,
	}); err != nil {
		return nil, fmt.Errorf("failed to log question: %w", err)
	}

	answeredAt := e.now()
	if answeredAt.Before(ts) {
		answeredAt = ts
	}
	if err := e.chats.AppendChat(ctx, &models.ChatExchange{
		UserID:    userID,
		Role:      models.RoleAssistant,
		Content:   answer,
		Timestamp: answeredAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to log answer: %w", err)
	}

	rec := e.recommender.Detect(ctx, answer)

	tokens := CountTokens(answer)
	m := TurnMetrics{
		Total:        e.now().Sub(start),
		Retrieval:    retrieval,
		ContextBuild: contextBuild,
		Generation:   generation,
		Tokens:       tokens,
	}
	if generation > 0 {
		m.TokensPerSecond = float64(tokens) / generation.Seconds()
	}
	e.record(userID, m, rec)

	return &TurnResult{
		Answer:         answer,
		Recommendation: rec,
		Metrics:        m,
	}, nil
}

func (e *Engine) record(userID string, m TurnMetrics, rec *models.Lesson) {
	metrics.ObserveTurn(m.Total, m.Retrieval, m.ContextBuild, m.Generation, m.Tokens, m.TokensPerSecond)
	metrics.ObserveRecommendation(rec != nil)

	recommended := ""
	if rec != nil {
		recommended = rec.Title
	}

	logger.Info("Chat turn completed",
		zap.String("user_id", userID),
		zap.Duration("total", m.Total),
		zap.Duration("retrieval", m.Retrieval),
		zap.Duration("context_build", m.ContextBuild),
		zap.Duration("generation", m.Generation),
		zap.Int("tokens", m.Tokens),
		zap.Float64("tokens_per_sec", m.TokensPerSecond),
		zap.String("recommended_lesson", recommended),
	)
}
