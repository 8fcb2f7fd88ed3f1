package recommend

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/pkg/logger"
)

type Catalog interface {
	GetAllLessons(ctx context.Context) ([]models.Lesson, error)
}

type Detector struct {
	catalog  Catalog
	matchers []Matcher
}

func NewDetector(catalog Catalog, vocab Vocabulary, fuzzyThreshold float64) *Detector {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = DefaultFuzzyThreshold
	}

	return &Detector{
		catalog: catalog,
		matchers: []Matcher{
			DirectMention{Vocabulary: vocab},
			NewPagePattern(vocab),
			FuzzyPageTitle{Threshold: fuzzyThreshold},
		},
	}
}

// Detect returns the lesson the answer recommends, or nil. It never fails:
// a catalog error is logged and treated as no recommendation.
func (d *Detector) Detect(ctx context.Context, answer string) *models.Lesson {
	lessons, err := d.catalog.GetAllLessons(ctx)
	if err != nil {
		logger.Warn("Recommendation detection skipped", zap.Error(err))
		return nil
	}

	return d.DetectIn(lessons, answer)
}

func (d *Detector) DetectIn(lessons []models.Lesson, answer string) *models.Lesson {
	attempt := Attempt{
		Answer:  answer,
		Lower:   strings.ToLower(answer),
		Catalog: lessons,
	}

	for _, m := range d.matchers {
		res := m.Attempt(attempt)
		if res.Final {
			if res.Lesson != nil {
				logger.Debug("Recommendation detected",
					zap.String("strategy", m.Name()),
					zap.String("lesson", res.Lesson.Title),
				)
			}
			return res.Lesson
		}
		if res.Lesson != nil {
			attempt.Candidate = res.Lesson
		}
	}

	return attempt.Candidate
}
