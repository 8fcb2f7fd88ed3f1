package query

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// CountTokens estimates the token length of generated text with prose's
// tokenizer, falling back to whitespace fields if tokenization fails.
func CountTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return len(strings.Fields(text))
	}
	return len(doc.Tokens())
}
