package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Python", Capitalize("python"))
	assert.Equal(t, "Javascript", Capitalize("JavaScript"))
	assert.Equal(t, "", Capitalize(""))
	assert.Equal(t, "Éclair", Capitalize("éCLAIR"))
}

func TestOrderFromFilename(t *testing.T) {
	tests := map[string]int{
		"python.md":     DefaultOrder,
		"01_python.md":  1,
		"dart2_v3.md":   2,
		"lesson-12.md":  12,
	}
	for name, want := range tests {
		assert.Equal(t, want, OrderFromFilename(name), name)
	}
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Dart Basics", ExtractTitle("## Dart Basics\nbody"))
	assert.Equal(t, "Python", ExtractTitle("#Python\r\n"))
	assert.Equal(t, "", ExtractTitle("Intro line\n# Heading"))
	assert.Equal(t, "", ExtractTitle(""))
}

func TestExtractPageMarkers(t *testing.T) {
	body := "# Dart\n## Page 1: Syntax\ntext\n  ## PAGE 2 · Types  \n### Page 3\n## Pages overview\n"
	got := ExtractPageMarkers(body, "## page")
	assert.Equal(t, []string{"## Page 1: Syntax", "## PAGE 2 · Types", "## Pages overview"}, got)
	assert.Nil(t, ExtractPageMarkers("no markers", "## page"))
}

func TestTopicSet(t *testing.T) {
	ts := NewTopicSet([]string{"data/python.md", "data/Dart.md", "data/go.md", "data/python.md"})

	assert.Equal(t, []string{"Dart", "Go", "Python"}, ts.Labels())
	assert.Equal(t, "Python", ts.Detect("PYTHON.md"))
	assert.Equal(t, "Dart", ts.Detect("02_dart_intro.md"))
	assert.Equal(t, UnknownTopic, ts.Detect("rust.md"))
}

func TestTopicSetUsesSortedKeyOrder(t *testing.T) {
	ts := NewTopicSet([]string{"javascript.md", "java.md"})
	assert.Equal(t, "Java", ts.Detect("javascript.md"))
}

func TestNewKnowledgeDocument(t *testing.T) {
	ts := NewTopicSet([]string{"dart.md"})
	doc := NewKnowledgeDocument("/kb/1_dart.md", "# Dart\n## Page 1 · Core Syntax\n", ts, "## page")

	assert.Equal(t, "1_dart.md", doc.Source)
	assert.Equal(t, "Dart", doc.Topic)
	assert.Equal(t, 1, doc.Order)
	assert.Equal(t, "Dart", doc.Title)
	assert.Equal(t, []string{"## Page 1 · Core Syntax"}, doc.Pages)
}

func TestListSources(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.md", "a.MD", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.md"), 0o755))

	files, err := ListSources(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.MD"), filepath.Join(dir, "b.md")}, files)

	_, err = ListSources(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
