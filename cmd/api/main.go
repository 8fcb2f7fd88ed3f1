package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/api/handlers"
	"github.com/morph-tutor/backend/internal/cache/redis"
	"github.com/morph-tutor/backend/internal/catalog"
	"github.com/morph-tutor/backend/internal/ingestion"
	"github.com/morph-tutor/backend/internal/llm"
	"github.com/morph-tutor/backend/internal/metrics"
	"github.com/morph-tutor/backend/internal/middleware/ratelimit"
	"github.com/morph-tutor/backend/internal/middleware/security"
	"github.com/morph-tutor/backend/internal/middleware/validation"
	"github.com/morph-tutor/backend/internal/query"
	"github.com/morph-tutor/backend/internal/recommend"
	"github.com/morph-tutor/backend/internal/retrieval"
	"github.com/morph-tutor/backend/internal/storage/sqlite"
	"github.com/morph-tutor/backend/internal/vector"
	"github.com/morph-tutor/backend/internal/vector/jsonl"
	"github.com/morph-tutor/backend/internal/vector/zilliz"
	"github.com/morph-tutor/backend/pkg/config"
	appLogger "github.com/morph-tutor/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Morph tutor API server")

	metrics.Init()

	ctx := context.Background()
	ready := map[string]handlers.Pinger{}

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err = sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}
	ready["sqlite"] = sqliteClient

	summary, err := catalog.NewLoader(sqliteClient, cfg.Catalog.MediaDir, cfg.Catalog.URLPrefix).Load(ctx)
	if err != nil {
		appLogger.Warn("Failed to load lesson catalog", zap.Error(err))
	} else {
		appLogger.Info("Lesson catalog loaded",
			zap.Int("lessons", summary.Lessons),
			zap.Int("pages", summary.Pages),
		)
	}

	store, closeStore, err := newVectorStore(ctx, cfg.Vector)
	if err != nil {
		appLogger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer closeStore()

	topics := knowledgeTopics(cfg.Knowledge.SourceDir)

	llmClient := llm.NewClient(llm.Options{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		TopicList:      query.JoinTopics(topics),
	})

	var embedder interface {
		retrieval.Embedder
		ingestion.BatchEmbedder
	} = llmClient

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			ready["redis"] = redisClient
			embedder = redis.NewCachedEmbedder(llmClient, redisClient, cfg.LLM.EmbeddingModel,
				time.Duration(cfg.Redis.TTLHours)*time.Hour)
		}
	}

	indexer := ingestion.NewIndexer(store, embedder, ingestion.Options{
		SourceDir:        cfg.Knowledge.SourceDir,
		ChunkSize:        cfg.Knowledge.ChunkSize,
		ChunkOverlap:     cfg.Knowledge.ChunkOverlap,
		PageMarkerPrefix: cfg.Knowledge.PageMarkerPrefix,
	})

	retriever := retrieval.NewRetriever(indexer, store, embedder, retrieval.Options{
		K:      cfg.Knowledge.K,
		FetchK: cfg.Knowledge.FetchK,
		Lambda: cfg.Knowledge.Lambda,
	})

	vocab, err := recommend.VocabularyFor(cfg.Recommend.Language)
	if err != nil {
		appLogger.Fatal("Failed to select recommendation vocabulary", zap.Error(err))
	}
	detector := recommend.NewDetector(sqliteClient, vocab, cfg.Recommend.FuzzyThreshold)

	engine := query.NewEngine(retriever, sqliteClient, sqliteClient, llmClient, detector, indexer, query.Options{
		WindowSize:      cfg.Chat.WindowSize,
		HistoryLimit:    cfg.Chat.HistoryLimit,
		MaxQuestionSize: cfg.Chat.MaxQuestionSize,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, " + handlers.UserIDHeader,
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))
	app.Static(cfg.Catalog.URLPrefix, cfg.Catalog.MediaDir)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		Logger:            appLogger.GetLogger(),
	})
	defer limiter.Stop()

	handlers.Register(app, handlers.Handlers{
		Chat:      handlers.NewChatHandler(engine, sqliteClient),
		Lessons:   handlers.NewLessonHandler(sqliteClient),
		Progress:  handlers.NewProgressHandler(sqliteClient),
		Health:    handlers.NewHealthHandler(ready),
		WebSocket: handlers.NewWebSocketHandler(engine, time.Duration(cfg.LLM.TimeoutSec)*time.Second).WithLimiter(limiter),
		Metrics:   metrics.MetricsHandler(),
	},
		limiter.Middleware(),
		validation.Middleware(validation.Config{
			MaxQuestionLength: cfg.Chat.MaxQuestionSize,
			Logger:            appLogger.GetLogger(),
		}),
	)

	// Build the index in the background so the first question does not pay for it.
	go func() {
		if err := indexer.EnsureBuilt(ctx); err != nil {
			appLogger.Warn("Initial index build failed, will retry on first question", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func newVectorStore(ctx context.Context, cfg config.VectorConfig) (vector.Store, func(), error) {
	switch cfg.Backend {
	case "milvus":
		client, err := zilliz.NewClient(ctx, cfg.Endpoint, cfg.APIKey, cfg.CollectionName, cfg.VectorDim)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil
	default:
		return jsonl.NewStore(cfg.Path), func() {}, nil
	}
}

func knowledgeTopics(dir string) []string {
	files, err := ingestion.ListSources(dir)
	if err != nil {
		appLogger.Warn("Failed to list knowledge sources", zap.Error(err), zap.String("dir", dir))
		return nil
	}
	return ingestion.NewTopicSet(files).Labels()
}
