package recommend

import (
	"fmt"
	"regexp"
	"strings"
)

// Vocabulary holds the language-specific words the detector looks for in an
// answer.
type Vocabulary struct {
	Triggers  []string
	PageWord  string
	AboutWord string
}

var (
	English = Vocabulary{
		Triggers:  []string{"study", "move on to", "next topic", "learn", "suggest"},
		PageWord:  "page",
		AboutWord: "about",
	}

	Indonesian = Vocabulary{
		Triggers:  []string{"pelajari", "lanjut ke", "belajar", "sarankan", "topik berikutnya"},
		PageWord:  "halaman",
		AboutWord: "tentang",
	}
)

func VocabularyFor(language string) (Vocabulary, error) {
	switch strings.ToLower(language) {
	case "", "en":
		return English, nil
	case "id":
		return Indonesian, nil
	default:
		return Vocabulary{}, fmt.Errorf("unsupported recommendation language %q", language)
	}
}

func (v Vocabulary) hasTrigger(lower string) bool {
	for _, t := range v.Triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// namedPagePattern matches "<Lesson> page <n> · <description>".
func (v Vocabulary) namedPagePattern() *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)([a-zA-Z]+)\s+%s\s+(\d+)\s*[·|:\-]\s*(.+?)(?:\.|\n|$)`,
		regexp.QuoteMeta(v.PageWord)))
}

// aboutPagePattern matches "page <n> about <description>".
func (v Vocabulary) aboutPagePattern() *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)%s\s+(\d+)\s+%s\s+(.+?)(?:\.|\n|$)`,
		regexp.QuoteMeta(v.PageWord), regexp.QuoteMeta(v.AboutWord)))
}
