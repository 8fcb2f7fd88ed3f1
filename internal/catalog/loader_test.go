package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morph-tutor/backend/internal/storage/sqlite"
)

func TestPageNumberAndTitle(t *testing.T) {
	assert.Equal(t, 1, PageNumber("1.Core_Syntax_&_Features.md"))
	assert.Equal(t, 12, PageNumber("12.Closures.md"))
	assert.Equal(t, 0, PageNumber("intro.md"))

	assert.Equal(t, "Core Syntax & Features", PageTitle("1.Core_Syntax_&_Features.md"))
	assert.Equal(t, "intro", PageTitle("intro.md"))
	assert.Equal(t, "2 Loops", PageTitle("2_Loops.md"))
}

func writeMedia(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	media := writeMedia(t, map[string]string{
		"dart/2.Variables.md":              "",
		"dart/1.Core_Syntax_&_Features.md": "",
		"dart/notes.txt":                   "",
		"PYTHON/1.Basics.md":               "",
		"README.md":                        "",
	})

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "morph.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.InitSchema())

	loader := NewLoader(db, media, "/media/lessons/")
	summary, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Lessons: 2, Pages: 3}, summary)

	lessons, err := db.GetAllLessons(ctx)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "Python", lessons[0].Title)
	assert.Equal(t, "Dart", lessons[1].Title)

	dart := lessons[1]
	require.Len(t, dart.Pages, 2)
	assert.Equal(t, 1, dart.Pages[0].Number)
	assert.Equal(t, "Core Syntax & Features", dart.Pages[0].Title)
	assert.Equal(t, "/media/lessons/dart/1.Core_Syntax_&_Features.md", dart.Pages[0].FileURL)
	assert.Equal(t, "/media/lessons/python/1.Basics.md", lessons[0].Pages[0].FileURL)

	// reloading keeps lessons and replaces pages
	require.NoError(t, os.Remove(filepath.Join(media, "dart", "2.Variables.md")))
	_, err = loader.Load(ctx)
	require.NoError(t, err)

	lessons, err = db.GetAllLessons(ctx)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Len(t, lessons[1].Pages, 1)
}

func TestLoadSkipsDuplicatePageNumbers(t *testing.T) {
	media := writeMedia(t, map[string]string{
		"go/intro.md":    "",
		"go/overview.md": "",
	})

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "morph.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.InitSchema())

	summary, err := NewLoader(db, media, "/media/lessons").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pages)
}

func TestLoadMissingMediaDir(t *testing.T) {
	_, err := NewLoader(nil, filepath.Join(t.TempDir(), "none"), "").Load(context.Background())
	assert.Error(t, err)
}
