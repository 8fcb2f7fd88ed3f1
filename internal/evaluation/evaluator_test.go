package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morph-tutor/backend/internal/recommend"
	"github.com/morph-tutor/backend/internal/storage/models"
)

type staticCatalog []models.Lesson

func (s staticCatalog) GetAllLessons(ctx context.Context) ([]models.Lesson, error) {
	return s, nil
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeCorrect, classify("Dart", "dart"))
	assert.Equal(t, OutcomeCorrect, classify("", ""))
	assert.Equal(t, OutcomeSpurious, classify("", "Dart"))
	assert.Equal(t, OutcomeMissed, classify("Dart", ""))
	assert.Equal(t, OutcomeWrong, classify("Dart", "Python"))
}

func TestRunDatasetEvaluation(t *testing.T) {
	data := []byte(`{"items":[
		{"answer":"I suggest you study Dart page 1 · Core Syntax & Features.","expected_lesson":"Dart"},
		{"answer":"Study Python next.","expected_lesson":"Python"},
		{"answer":"Have a nice day.","expected_lesson":""},
		{"answer":"Rust page 1 · Ownership.","expected_lesson":"Dart"},
		{"answer":"Learn Python.","expected_lesson":""}
	]}`)
	dataset, err := LoadDatasetFromJSON(data)
	require.NoError(t, err)

	catalog := staticCatalog{{ID: 1, Title: "Python"}, {ID: 2, Title: "Dart"}}
	ev := NewEvaluator(recommend.NewDetector(catalog, recommend.English, 0))

	report, err := ev.RunDatasetEvaluation(context.Background(), dataset)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 3, report.CorrectCount)
	assert.Equal(t, 1, report.MissedCount)
	assert.Equal(t, 1, report.SpuriousCount)
	assert.InDelta(t, 60.0, report.CorrectPercentage, 1e-9)

	text := GenerateReport(report)
	assert.Contains(t, text, "Correct: 3 (60.0%)")
	assert.Contains(t, text, `[missed] expected "Dart", detected ""`)
}

func TestLoadDatasetFromJSONInvalid(t *testing.T) {
	_, err := LoadDatasetFromJSON([]byte("{"))
	assert.Error(t, err)
}
