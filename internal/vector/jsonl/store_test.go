package jsonl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morph-tutor/backend/internal/vector"
)

func sampleRecords() []vector.Record {
	return []vector.Record{
		{
			Chunk: vector.Chunk{
				ID:   "dart-0",
				Text: "Dart variables <are> typed",
				Metadata: vector.Metadata{
					Source: "dart.md", Topic: "Dart", Order: 1, Title: "Dart Basics",
					Pages: []string{"## Page 1: Variables", "## Page 2: Functions"},
				},
			},
			Embedding: []float32{1, 0},
		},
		{
			Chunk: vector.Chunk{
				ID:       "flutter-0",
				Text:     "Flutter widgets",
				Metadata: vector.Metadata{Source: "flutter.md", Topic: "Flutter", Order: 999},
			},
			Embedding: []float32{0, 1},
		},
	}
}

func TestStoreExistsOnlyAfterSave(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectordb", "index.jsonl")
	s := NewStore(path)

	exists, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Save(ctx, sampleRecords()))

	exists, err = s.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestStoreSearchReloadsFromDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.jsonl")
	require.NoError(t, NewStore(path).Save(ctx, sampleRecords()))

	fresh := NewStore(path)
	matches, err := fresh.Search(ctx, []float32{0.9, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	got := matches[0]
	assert.Equal(t, "dart-0", got.ID)
	assert.Equal(t, "Dart variables <are> typed", got.Text)
	assert.Equal(t, []string{"## Page 1: Variables", "## Page 2: Functions"}, got.Metadata.Pages)
	assert.Equal(t, 1, got.Metadata.Order)
	assert.Equal(t, []float32{1, 0}, got.Embedding)
}

func TestStoreSearchMissingIndex(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.jsonl"))
	_, err := s.Search(context.Background(), []float32{1}, 3)
	assert.Error(t, err)
}

func TestStoreRejectsCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o644))

	_, err := NewStore(path).Search(context.Background(), []float32{1}, 3)
	assert.ErrorContains(t, err, "line 1")
}
