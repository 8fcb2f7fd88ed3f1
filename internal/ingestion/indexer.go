package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/vector"
	"github.com/morph-tutor/backend/pkg/logger"
)

type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	SourceDir        string
	ChunkSize        int
	ChunkOverlap     int
	PageMarkerPrefix string
}

// Indexer owns the lifecycle of the vector index. EnsureBuilt is safe for
// concurrent use: callers serialize on mu and later ones see built == true.
type Indexer struct {
	store    vector.Store
	embedder BatchEmbedder
	splitter *Splitter
	opts     Options

	mu     sync.Mutex
	built  bool
	topics *TopicSet
}

func NewIndexer(store vector.Store, embedder BatchEmbedder, opts Options) *Indexer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 0
	}
	if opts.PageMarkerPrefix == "" {
		opts.PageMarkerPrefix = "## page"
	}

	return &Indexer{
		store:    store,
		embedder: embedder,
		splitter: NewSplitter(opts.ChunkSize, opts.ChunkOverlap),
		opts:     opts,
	}
}

func (ix *Indexer) EnsureBuilt(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.built {
		return nil
	}

	exists, err := ix.store.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check vector index: %w", err)
	}
	if exists {
		ix.built = true
		return nil
	}

	if err := ix.build(ctx); err != nil {
		return err
	}
	ix.built = true
	return nil
}

func (ix *Indexer) build(ctx context.Context) error {
	start := time.Now()
	logger.Info("Building vector index", zap.String("source_dir", ix.opts.SourceDir))

	docs, err := ix.LoadDocuments()
	if err != nil {
		return err
	}

	var chunks []vector.Chunk
	for _, doc := range docs {
		chunks = append(chunks, ix.chunkDocument(doc)...)
	}

	records := make([]vector.Record, len(chunks))
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}

		embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(embeddings) != len(chunks) {
			return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
		}

		for i, c := range chunks {
			records[i] = vector.Record{Chunk: c, Embedding: embeddings[i]}
		}
	}

	if err := ix.store.Save(ctx, records); err != nil {
		return fmt.Errorf("failed to persist vector index: %w", err)
	}

	logger.Info("Vector index built",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(records)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// LoadDocuments reads every source file. Files that cannot be read are logged
// and skipped.
func (ix *Indexer) LoadDocuments() ([]KnowledgeDocument, error) {
	files, err := ListSources(ix.opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge sources: %w", err)
	}

	topics := NewTopicSet(files)

	docs := make([]KnowledgeDocument, 0, len(files))
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Skipping unreadable knowledge document",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, NewKnowledgeDocument(path, string(raw), topics, ix.opts.PageMarkerPrefix))
	}
	return docs, nil
}

func (ix *Indexer) chunkDocument(doc KnowledgeDocument) []vector.Chunk {
	meta := vector.Metadata{
		Source: doc.Source,
		Topic:  doc.Topic,
		Order:  doc.Order,
		Title:  doc.Title,
		Pages:  doc.Pages,
	}

	texts := ix.splitter.Split(doc.Body)
	chunks := make([]vector.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = vector.Chunk{
			ID:       chunkID(doc.Source, i),
			Text:     text,
			Metadata: meta,
		}
	}
	return chunks
}

// Topics returns the sorted topic labels derived from the source filenames.
// A source directory that cannot be listed yields no topics.
func (ix *Indexer) Topics() []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.topics == nil {
		files, err := ListSources(ix.opts.SourceDir)
		if err != nil {
			logger.Warn("Failed to list knowledge sources for topics", zap.Error(err))
			return nil
		}
		ix.topics = NewTopicSet(files)
	}
	return ix.topics.Labels()
}

func chunkID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", filepath.Base(source), index))).String()
}
