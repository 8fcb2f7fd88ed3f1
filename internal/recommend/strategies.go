package recommend

import (
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/morph-tutor/backend/internal/storage/models"
)

const DefaultFuzzyThreshold = 0.75

// Attempt is the input shared by every strategy. Candidate carries a tentative
// match from an earlier strategy.
type Attempt struct {
	Answer    string
	Lower     string
	Catalog   []models.Lesson
	Candidate *models.Lesson
}

// Result ends detection when Final is set; Lesson may then be nil. A non-final
// Lesson becomes the candidate for the strategies that follow.
type Result struct {
	Lesson *models.Lesson
	Final  bool
}

type Matcher interface {
	Name() string
	Attempt(a Attempt) Result
}

// DirectMention proposes the first lesson, in catalog order, whose title is in
// the answer together with a trigger phrase.
type DirectMention struct {
	Vocabulary Vocabulary
}

func (DirectMention) Name() string { return "direct_mention" }

func (m DirectMention) Attempt(a Attempt) Result {
	if !m.Vocabulary.hasTrigger(a.Lower) {
		return Result{}
	}
	for i := range a.Catalog {
		if strings.Contains(a.Lower, strings.ToLower(a.Catalog[i].Title)) {
			return Result{Lesson: &a.Catalog[i]}
		}
	}
	return Result{}
}

// PagePattern binds explicit page references. A named reference decides the
// outcome: a catalog name wins, anything else keeps the direct-mention
// candidate (possibly none). An "about" reference only confirms an existing
// candidate.
type PagePattern struct {
	named *regexp.Regexp
	about *regexp.Regexp
}

func NewPagePattern(v Vocabulary) *PagePattern {
	return &PagePattern{
		named: v.namedPagePattern(),
		about: v.aboutPagePattern(),
	}
}

func (*PagePattern) Name() string { return "page_pattern" }

func (m *PagePattern) Attempt(a Attempt) Result {
	if match := m.named.FindStringSubmatch(a.Answer); match != nil {
		if named := findByTitle(a.Catalog, match[1]); named != nil {
			return Result{Lesson: named, Final: true}
		}
		// the capture is often a plain word ("on page 2", "the page 1")
		return Result{Lesson: a.Candidate, Final: true}
	}
	if m.about.MatchString(a.Answer) && a.Candidate != nil {
		return Result{Lesson: findByTitle(a.Catalog, a.Candidate.Title), Final: true}
	}
	return Result{}
}

// FuzzyPageTitle runs only when nothing earlier produced a lesson. The first
// page whose title is similar enough to the whole answer wins.
type FuzzyPageTitle struct {
	Threshold float64
}

func (FuzzyPageTitle) Name() string { return "fuzzy_page_title" }

func (m FuzzyPageTitle) Attempt(a Attempt) Result {
	if a.Candidate != nil {
		return Result{Lesson: a.Candidate, Final: true}
	}

	answer := runes(a.Lower)
	for i := range a.Catalog {
		for _, p := range a.Catalog[i].Pages {
			if Similarity(runes(strings.ToLower(p.Title)), answer) >= m.Threshold {
				return Result{Lesson: &a.Catalog[i], Final: true}
			}
		}
	}
	return Result{Final: true}
}

// Similarity is the sequence matcher ratio 2*M/T of a against b.
func Similarity(a, b []string) float64 {
	return difflib.NewMatcher(a, b).Ratio()
}

func findByTitle(catalog []models.Lesson, title string) *models.Lesson {
	for i := range catalog {
		if strings.EqualFold(catalog[i].Title, title) {
			return &catalog[i]
		}
	}
	return nil
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
