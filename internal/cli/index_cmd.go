package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/morph-tutor/backend/internal/ingestion"
	"github.com/morph-tutor/backend/internal/llm"
	"github.com/morph-tutor/backend/internal/vector"
	"github.com/morph-tutor/backend/internal/vector/jsonl"
	"github.com/morph-tutor/backend/internal/vector/zilliz"
	"github.com/morph-tutor/backend/pkg/config"
)

var rebuildIndex bool

// indexCmd builds the knowledge index unless one already exists.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the knowledge vector index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg := getConfig()

		if rebuildIndex {
			if cfg.Vector.Backend != "jsonl" {
				return fmt.Errorf("--rebuild is only supported for the jsonl backend")
			}
			if err := os.Remove(cfg.Vector.Path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove index: %w", err)
			}
		}

		store, closeStore, err := openVectorStore(ctx, cfg.Vector)
		if err != nil {
			return err
		}
		defer closeStore()

		indexer := ingestion.NewIndexer(store, newLLMClient(cfg), ingestion.Options{
			SourceDir:        cfg.Knowledge.SourceDir,
			ChunkSize:        cfg.Knowledge.ChunkSize,
			ChunkOverlap:     cfg.Knowledge.ChunkOverlap,
			PageMarkerPrefix: cfg.Knowledge.PageMarkerPrefix,
		})

		start := time.Now()
		if err := indexer.EnsureBuilt(ctx); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Index ready (%s backend, %s)\nTopics: %v\n",
			cfg.Vector.Backend, time.Since(start).Round(time.Millisecond), indexer.Topics())
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&rebuildIndex, "rebuild", false, "delete an existing jsonl index before building")
	rootCmd.AddCommand(indexCmd)
}

func openVectorStore(ctx context.Context, cfg config.VectorConfig) (vector.Store, func(), error) {
	if cfg.Backend == "milvus" {
		client, err := zilliz.NewClient(ctx, cfg.Endpoint, cfg.APIKey, cfg.CollectionName, cfg.VectorDim)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil
	}
	return jsonl.NewStore(cfg.Path), func() {}, nil
}

func newLLMClient(cfg *config.Config) *llm.Client {
	return llm.NewClient(llm.Options{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})
}
