package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morph-tutor/backend/internal/vector"
	"github.com/morph-tutor/backend/internal/vector/jsonl"
)

type countingStore struct {
	vector.Store
	mu    sync.Mutex
	saves int
}

func (s *countingStore) Save(ctx context.Context, records []vector.Record) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.Store.Save(ctx, records)
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func writeSources(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func newTestIndexer(t *testing.T, sourceDir string, emb *fakeEmbedder) (*Indexer, *countingStore) {
	t.Helper()
	store := &countingStore{Store: jsonl.NewStore(filepath.Join(t.TempDir(), "index.jsonl"))}
	ix := NewIndexer(store, emb, Options{
		SourceDir:        sourceDir,
		ChunkSize:        1000,
		ChunkOverlap:     200,
		PageMarkerPrefix: "## page",
	})
	return ix, store
}

func TestEnsureBuiltRunsOnce(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"python.md": "# Python\n## Page 1 · Basics\nprint()",
		"dart.md":   "# Dart\n## Page 1 · Core Syntax & Features\nvoid main() {}",
	})
	emb := &fakeEmbedder{}
	ix, store := newTestIndexer(t, dir, emb)

	ctx := context.Background()
	require.NoError(t, ix.EnsureBuilt(ctx))
	require.NoError(t, ix.EnsureBuilt(ctx))

	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1, emb.calls)

	matches, err := store.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestEnsureBuiltSkipsExistingIndex(t *testing.T) {
	dir := writeSources(t, map[string]string{"go.md": "# Go\nfunc main() {}"})
	storePath := filepath.Join(t.TempDir(), "index.jsonl")
	require.NoError(t, jsonl.NewStore(storePath).Save(context.Background(), nil))

	emb := &fakeEmbedder{}
	store := &countingStore{Store: jsonl.NewStore(storePath)}
	ix := NewIndexer(store, emb, Options{SourceDir: dir})

	require.NoError(t, ix.EnsureBuilt(context.Background()))
	assert.Zero(t, store.saves)
	assert.Zero(t, emb.calls)
}

func TestEnsureBuiltConcurrentCallersBuildOnce(t *testing.T) {
	dir := writeSources(t, map[string]string{"go.md": "# Go\nfunc main() {}"})
	emb := &fakeEmbedder{}
	ix, store := newTestIndexer(t, dir, emb)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ix.EnsureBuilt(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, store.saves)
}

func TestEnsureBuiltEmbeddingFailureLeavesIndexUnbuilt(t *testing.T) {
	dir := writeSources(t, map[string]string{"go.md": "# Go\nfunc main() {}"})
	emb := &fakeEmbedder{err: errors.New("embedding service down")}
	ix, store := newTestIndexer(t, dir, emb)

	err := ix.EnsureBuilt(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "embedding service down")

	exists, err := store.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)

	emb.err = nil
	require.NoError(t, ix.EnsureBuilt(context.Background()))
	assert.Equal(t, 1, store.saves)
}

func TestLoadDocumentsSkipsUnreadable(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"python.md": "# Python\nbody",
	})
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing-target"), filepath.Join(dir, "broken.md")))

	ix, _ := newTestIndexer(t, dir, &fakeEmbedder{})
	docs, err := ix.LoadDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "python.md", docs[0].Source)
	assert.Equal(t, "Python", docs[0].Topic)
}

func TestChunkMetadataAndDeterministicIDs(t *testing.T) {
	ix, _ := newTestIndexer(t, t.TempDir(), &fakeEmbedder{})
	doc := KnowledgeDocument{
		Body:   "# Dart\n## Page 1 · Core Syntax",
		Source: "1_dart.md",
		Topic:  "Dart",
		Order:  1,
		Title:  "Dart",
		Pages:  []string{"## Page 1 · Core Syntax"},
	}

	first := ix.chunkDocument(doc)
	second := ix.chunkDocument(doc)
	require.Len(t, first, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, vector.Metadata{
		Source: "1_dart.md", Topic: "Dart", Order: 1, Title: "Dart",
		Pages: []string{"## Page 1 · Core Syntax"},
	}, first[0].Metadata)
}

func TestTopics(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"python.md": "x",
		"dart.md":   "x",
		"go.md":     "x",
	})
	ix, _ := newTestIndexer(t, dir, &fakeEmbedder{})
	assert.Equal(t, []string{"Dart", "Go", "Python"}, ix.Topics())

	missing, _ := newTestIndexer(t, filepath.Join(dir, "nope"), &fakeEmbedder{})
	assert.Empty(t, missing.Topics())
}
