package catalog

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/ingestion"
	"github.com/morph-tutor/backend/internal/metrics"
	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/pkg/logger"
)

var (
	leadingNumber = regexp.MustCompile(`^(\d+)`)
	numberPrefix  = regexp.MustCompile(`^\d+\.`)
)

type Store interface {
	GetOrCreateLesson(ctx context.Context, title string) (*models.Lesson, error)
	ReplacePages(ctx context.Context, lessonID int64, pages []models.Page) error
}

// Loader syncs the lesson catalog with a media directory laid out as
// <mediaDir>/<lesson>/<N>.<Page_Title>.md.
type Loader struct {
	store     Store
	mediaDir  string
	urlPrefix string
}

type Summary struct {
	Lessons int
	Pages   int
}

func NewLoader(store Store, mediaDir, urlPrefix string) *Loader {
	return &Loader{
		store:     store,
		mediaDir:  mediaDir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}
}

func (l *Loader) Load(ctx context.Context) (*Summary, error) {
	entries, err := os.ReadDir(l.mediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read media directory: %w", err)
	}

	summary := &Summary{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		pages, err := l.pagesFor(e.Name())
		if err != nil {
			return nil, err
		}

		lesson, err := l.store.GetOrCreateLesson(ctx, ingestion.Capitalize(e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load lesson %s: %w", e.Name(), err)
		}
		if err := l.store.ReplacePages(ctx, lesson.ID, pages); err != nil {
			return nil, fmt.Errorf("failed to load pages for %s: %w", lesson.Title, err)
		}

		summary.Lessons++
		summary.Pages += len(pages)
		logger.Info("Lesson loaded", zap.String("lesson", lesson.Title), zap.Int("pages", len(pages)))
	}

	metrics.LessonsLoaded.Set(float64(summary.Lessons))
	return summary, nil
}

func (l *Loader) pagesFor(dir string) ([]models.Page, error) {
	matches, err := filepath.Glob(filepath.Join(l.mediaDir, dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("failed to list pages of %s: %w", dir, err)
	}
	sort.Strings(matches)

	seen := make(map[int]string)
	pages := make([]models.Page, 0, len(matches))
	for _, m := range matches {
		filename := filepath.Base(m)
		number := PageNumber(filename)
		if prev, ok := seen[number]; ok {
			logger.Warn("Skipping page with duplicate number",
				zap.String("lesson", dir),
				zap.String("file", filename),
				zap.String("kept", prev),
				zap.Int("page", number),
			)
			continue
		}
		seen[number] = filename

		pages = append(pages, models.Page{
			Number:   number,
			Title:    PageTitle(filename),
			Filename: filename,
			FileURL:  l.urlPrefix + "/" + path.Join(strings.ToLower(dir), filename),
		})
	}
	return pages, nil
}

// PageNumber is the leading integer of a page filename, 0 when absent.
func PageNumber(filename string) int {
	m := leadingNumber.FindString(filename)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// PageTitle strips the "N." prefix and ".md" suffix and turns underscores
// into spaces.
func PageTitle(filename string) string {
	name := numberPrefix.ReplaceAllString(filename, "")
	name = strings.TrimSuffix(name, ".md")
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
}
