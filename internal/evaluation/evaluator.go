package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/pkg/logger"
)

const (
	OutcomeCorrect  = "correct"
	OutcomeWrong    = "wrong"
	OutcomeMissed   = "missed"
	OutcomeSpurious = "spurious"
)

type Detector interface {
	Detect(ctx context.Context, answer string) *models.Lesson
}

// Evaluator replays labelled answers through the recommendation detector.
type Evaluator struct {
	detector Detector
}

type Dataset struct {
	Items []DatasetItem `json:"items"`
}

// DatasetItem is one labelled answer. An empty ExpectedLesson means the answer
// should not produce a recommendation.
type DatasetItem struct {
	Answer         string `json:"answer"`
	ExpectedLesson string `json:"expected_lesson"`
	Category       string `json:"category"`
}

type ItemResult struct {
	Item     DatasetItem
	Detected string
	Outcome  string
}

type Report struct {
	Total              int
	CorrectCount       int
	WrongCount         int
	MissedCount        int
	SpuriousCount      int
	CorrectPercentage  float64
	WrongPercentage    float64
	MissedPercentage   float64
	SpuriousPercentage float64
	Results            []ItemResult
}

func NewEvaluator(detector Detector) *Evaluator {
	return &Evaluator{detector: detector}
}

func (e *Evaluator) EvaluateItem(ctx context.Context, item DatasetItem) ItemResult {
	detected := ""
	if lesson := e.detector.Detect(ctx, item.Answer); lesson != nil {
		detected = lesson.Title
	}

	return ItemResult{
		Item:     item,
		Detected: detected,
		Outcome:  classify(item.ExpectedLesson, detected),
	}
}

func classify(expected, detected string) string {
	switch {
	case strings.EqualFold(expected, detected):
		return OutcomeCorrect
	case expected == "":
		return OutcomeSpurious
	case detected == "":
		return OutcomeMissed
	default:
		return OutcomeWrong
	}
}

func (e *Evaluator) RunDatasetEvaluation(ctx context.Context, dataset *Dataset) (*Report, error) {
	logger.Info("Running recommendation evaluation", zap.Int("items", len(dataset.Items)))

	report := &Report{Total: len(dataset.Items)}

	for i, item := range dataset.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := e.EvaluateItem(ctx, item)
		report.Results = append(report.Results, result)

		switch result.Outcome {
		case OutcomeCorrect:
			report.CorrectCount++
		case OutcomeWrong:
			report.WrongCount++
		case OutcomeMissed:
			report.MissedCount++
		case OutcomeSpurious:
			report.SpuriousCount++
		}

		logger.Debug("Evaluated item",
			zap.Int("index", i+1),
			zap.String("expected", item.ExpectedLesson),
			zap.String("detected", result.Detected),
			zap.String("outcome", result.Outcome),
		)
	}

	if report.Total > 0 {
		total := float64(report.Total)
		report.CorrectPercentage = float64(report.CorrectCount) / total * 100
		report.WrongPercentage = float64(report.WrongCount) / total * 100
		report.MissedPercentage = float64(report.MissedCount) / total * 100
		report.SpuriousPercentage = float64(report.SpuriousCount) / total * 100
	}

	logger.Info("Recommendation evaluation completed",
		zap.Int("total", report.Total),
		zap.Int("correct", report.CorrectCount),
		zap.Int("wrong", report.WrongCount),
		zap.Int("missed", report.MissedCount),
		zap.Int("spurious", report.SpuriousCount),
	)

	return report, nil
}

func LoadDatasetFromJSON(data []byte) (*Dataset, error) {
	var dataset Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	return &dataset, nil
}

func GenerateReport(report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
Recommendation Evaluation Report
================================

Total Answers: %d

Outcomes:
- Correct: %d (%.1f%%)
- Wrong lesson: %d (%.1f%%)
- Missed: %d (%.1f%%)
- Spurious: %d (%.1f%%)
`,
		report.Total,
		report.CorrectCount, report.CorrectPercentage,
		report.WrongCount, report.WrongPercentage,
		report.MissedCount, report.MissedPercentage,
		report.SpuriousCount, report.SpuriousPercentage,
	)

	var failures []ItemResult
	for _, r := range report.Results {
		if r.Outcome != OutcomeCorrect {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		b.WriteString("\nFailures:\n")
		for _, r := range failures {
			fmt.Fprintf(&b, "- [%s] expected %q, detected %q: %s\n",
				r.Outcome, r.Item.ExpectedLesson, r.Detected, truncate(r.Item.Answer, 80))
		}
	}

	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
