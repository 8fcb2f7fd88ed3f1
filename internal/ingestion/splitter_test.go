package ingestion

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitterShortTextIsOneChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	assert.Equal(t, []string{"Hello world."}, s.Split("  Hello world.  "))
	assert.Empty(t, s.Split("   "))
}

func TestSplitterPrefersParagraphs(t *testing.T) {
	s := NewSplitter(20, 0)
	chunks := s.Split("first para\n\nsecond para\n\nthird")
	assert.Equal(t, []string{"first para", "second para\n\nthird"}, chunks)
}

func TestSplitterRespectsSizeAndNeverCutsWords(t *testing.T) {
	words := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")

	s := NewSplitter(100, 20)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
		for _, w := range strings.Fields(c) {
			assert.Equal(t, "word", w)
		}
	}
}

func TestSplitterOverlapsConsecutiveChunks(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("w")
		b.WriteString(string(rune('a' + i%26)))
		b.WriteString(" ")
	}

	s := NewSplitter(30, 10)
	chunks := s.Split(b.String())
	require.Greater(t, len(chunks), 2)

	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		next := strings.Fields(chunks[i])
		assert.Contains(t, prev[len(prev)/2:], next[0], "chunk %d should start inside the tail of chunk %d", i, i-1)
	}
}

func TestSplitterFallsBackToCharacters(t *testing.T) {
	s := NewSplitter(10, 0)
	chunks := s.Split(strings.Repeat("x", 25))
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, chunks)
}
