package zilliz

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/vector"
	"github.com/morph-tutor/backend/pkg/logger"
)

const (
	fieldID        = "chunk_id"
	fieldEmbedding = "embedding"
	fieldText      = "text"
	fieldSource    = "source"
	fieldTopic     = "topic"
	fieldOrder     = "order_num"
	fieldTitle     = "title"
	fieldPages     = "pages"
)

var outputFields = []string{fieldID, fieldEmbedding, fieldText, fieldSource, fieldTopic, fieldOrder, fieldTitle, fieldPages}

// Client is a vector.Store backed by a Milvus (or Zilliz Cloud) collection.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewClient(ctx context.Context, endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address: endpoint,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Zilliz/Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (z *Client) Close() error {
	return z.client.Close()
}

func (z *Client) Exists(ctx context.Context) (bool, error) {
	has, err := z.client.HasCollection(ctx, z.collectionName)
	if err != nil {
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	return has, nil
}

func (z *Client) schema() *entity.Schema {
	varchar := func(name string, maxLen int) *entity.Field {
		return &entity.Field{
			Name:     name,
			DataType: entity.FieldTypeVarChar,
			TypeParams: map[string]string{
				"max_length": fmt.Sprintf("%d", maxLen),
			},
		}
	}

	id := varchar(fieldID, 64)
	id.PrimaryKey = true

	return &entity.Schema{
		CollectionName: z.collectionName,
		Description:    "Lesson knowledge chunks",
		Fields: []*entity.Field{
			id,
			{
				Name:     fieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", z.vectorDim),
				},
			},
			varchar(fieldText, 8192),
			varchar(fieldSource, 512),
			varchar(fieldTopic, 128),
			{Name: fieldOrder, DataType: entity.FieldTypeInt64},
			varchar(fieldTitle, 512),
			varchar(fieldPages, 8192),
		},
	}
}

// Save creates the collection and fills it. A failed save drops the collection
// again so Exists does not report a partial index.
func (z *Client) Save(ctx context.Context, records []vector.Record) (err error) {
	exists, err := z.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("collection %s already exists", z.collectionName)
	}

	if err := z.client.CreateCollection(ctx, z.schema(), entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	defer func() {
		if err != nil {
			if dropErr := z.client.DropCollection(context.Background(), z.collectionName); dropErr != nil {
				logger.Warn("Failed to drop partial collection", zap.Error(dropErr))
			}
		}
	}()

	if len(records) > 0 {
		if err = z.insert(ctx, records); err != nil {
			return err
		}
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 128)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err = z.client.CreateIndex(ctx, z.collectionName, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err = z.client.LoadCollection(ctx, z.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded",
		zap.String("collection", z.collectionName),
		zap.Int("records", len(records)),
	)
	return nil
}

func (z *Client) insert(ctx context.Context, records []vector.Record) error {
	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	texts := make([]string, len(records))
	sources := make([]string, len(records))
	topics := make([]string, len(records))
	orders := make([]int64, len(records))
	titles := make([]string, len(records))
	pages := make([]string, len(records))

	for i, r := range records {
		ids[i] = r.ID
		embeddings[i] = r.Embedding
		texts[i] = r.Text
		sources[i] = r.Metadata.Source
		topics[i] = r.Metadata.Topic
		orders[i] = int64(r.Metadata.Order)
		titles[i] = r.Metadata.Title
		pages[i] = strings.Join(r.Metadata.Pages, "\n")
	}

	_, err := z.client.Insert(
		ctx,
		z.collectionName,
		"",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldEmbedding, z.vectorDim, embeddings),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldSource, sources),
		entity.NewColumnVarChar(fieldTopic, topics),
		entity.NewColumnInt64(fieldOrder, orders),
		entity.NewColumnVarChar(fieldTitle, titles),
		entity.NewColumnVarChar(fieldPages, pages),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := z.client.Flush(ctx, z.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted into vector DB", zap.Int("count", len(records)))
	return nil
}

func (z *Client) Search(ctx context.Context, embedding []float32, k int) ([]vector.Match, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResult, err := z.client.Search(
		ctx,
		z.collectionName,
		[]string{},
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(embedding)},
		fieldEmbedding,
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]vector.Match, 0, k)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			m, err := decodeMatch(sr, i)
			if err != nil {
				return nil, err
			}
			matches = append(matches, m)
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("k", k),
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

func decodeMatch(sr client.SearchResult, i int) (vector.Match, error) {
	str := func(name string) (string, error) {
		col := sr.Fields.GetColumn(name)
		if col == nil {
			return "", fmt.Errorf("missing column %s in search result", name)
		}
		return col.GetAsString(i)
	}

	var m vector.Match
	var err error
	if m.ID, err = str(fieldID); err != nil {
		return m, err
	}
	if m.Text, err = str(fieldText); err != nil {
		return m, err
	}
	if m.Metadata.Source, err = str(fieldSource); err != nil {
		return m, err
	}
	if m.Metadata.Topic, err = str(fieldTopic); err != nil {
		return m, err
	}
	if m.Metadata.Title, err = str(fieldTitle); err != nil {
		return m, err
	}
	pages, err := str(fieldPages)
	if err != nil {
		return m, err
	}
	m.Metadata.Pages = splitPages(pages)

	if col := sr.Fields.GetColumn(fieldOrder); col != nil {
		order, err := col.GetAsInt64(i)
		if err != nil {
			return m, fmt.Errorf("failed to read order: %w", err)
		}
		m.Metadata.Order = int(order)
	}

	if col := sr.Fields.GetColumn(fieldEmbedding); col != nil {
		v, err := col.Get(i)
		if err != nil {
			return m, fmt.Errorf("failed to read embedding: %w", err)
		}
		if emb, ok := v.([]float32); ok {
			m.Embedding = emb
		}
	}

	m.Score = sr.Scores[i]
	return m, nil
}

func splitPages(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, "\n")
}
