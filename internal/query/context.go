package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/morph-tutor/backend/internal/storage/models"
	"github.com/morph-tutor/backend/internal/vector"
)

const historyDateLayout = "2006-01-02"

// BuildContext renders the prompt context: learning history (most recent
// first, as the store returns it), the allowed topics and the retrieved chunk
// texts in retrieval order. The output depends only on its inputs.
func BuildContext(history []models.LearningHistoryEntry, topics []string, chunks []vector.Chunk) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Learning history:\n")
		for i, h := range history {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "- %s, page %d (last %s)", h.Title, h.Page, h.VisitedAt.Format(historyDateLayout))
		}
		b.WriteString("\n")

		latest := history[0]
		fmt.Fprintf(&b, "Most recent lesson: %s. The user was last on page %d. ", latest.Title, latest.Page)
	}

	if allowed := JoinTopics(normalizeTopics(topics)); allowed != "" {
		fmt.Fprintf(&b, "\n\nAllowed topics: %s.\n\n", allowed)
	} else if b.Len() > 0 && len(chunks) > 0 {
		b.WriteString("\n\n")
	}

	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.Text)
	}

	return b.String()
}

// JoinTopics phrases a list for a sentence: "A", "A and B", "A, B, and C".
func JoinTopics(topics []string) string {
	switch len(topics) {
	case 0:
		return ""
	case 1:
		return topics[0]
	case 2:
		return topics[0] + " and " + topics[1]
	default:
		return strings.Join(topics[:len(topics)-1], ", ") + ", and " + topics[len(topics)-1]
	}
}

func normalizeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
