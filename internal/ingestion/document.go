package ingestion

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	UnknownTopic = "Unknown"
	DefaultOrder = 999
)

var firstNumber = regexp.MustCompile(`\d+`)

// KnowledgeDocument is one source file with the metadata extracted from its
// name and body.
type KnowledgeDocument struct {
	Body   string
	Source string
	Topic  string
	Order  int
	Title  string
	Pages  []string
}

// TopicSet maps lowercase filename stems to their display labels.
type TopicSet struct {
	keys   []string
	labels map[string]string
}

func NewTopicSet(filenames []string) *TopicSet {
	ts := &TopicSet{labels: make(map[string]string)}
	for _, name := range filenames {
		stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		key := strings.ToLower(stem)
		if _, ok := ts.labels[key]; ok {
			continue
		}
		ts.labels[key] = Capitalize(stem)
		ts.keys = append(ts.keys, key)
	}
	sort.Strings(ts.keys)
	return ts
}

// Detect returns the label of the first key, in sorted order, contained in the
// lowercase filename.
func (ts *TopicSet) Detect(filename string) string {
	lower := strings.ToLower(filename)
	for _, key := range ts.keys {
		if strings.Contains(lower, key) {
			return ts.labels[key]
		}
	}
	return UnknownTopic
}

// Labels returns the sorted, de-duplicated topic labels.
func (ts *TopicSet) Labels() []string {
	seen := make(map[string]struct{}, len(ts.labels))
	labels := make([]string, 0, len(ts.labels))
	for _, label := range ts.labels {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Capitalize upper-cases the first rune and lower-cases the rest.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func OrderFromFilename(filename string) int {
	m := firstNumber.FindString(filename)
	if m == "" {
		return DefaultOrder
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return DefaultOrder
	}
	return n
}

// ExtractTitle returns the first line with its heading markers removed, or ""
// when the first line is not a heading.
func ExtractTitle(body string) string {
	first, _, _ := strings.Cut(body, "\n")
	first = strings.TrimRight(first, "\r")
	if !strings.HasPrefix(first, "#") {
		return ""
	}
	return strings.TrimSpace(strings.TrimLeft(first, "#"))
}

func ExtractPageMarkers(body, prefix string) []string {
	prefix = strings.ToLower(prefix)

	var markers []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			markers = append(markers, line)
		}
	}
	return markers
}

func NewKnowledgeDocument(filename, body string, topics *TopicSet, markerPrefix string) KnowledgeDocument {
	base := filepath.Base(filename)
	return KnowledgeDocument{
		Body:   body,
		Source: base,
		Topic:  topics.Detect(base),
		Order:  OrderFromFilename(base),
		Title:  ExtractTitle(body),
		Pages:  ExtractPageMarkers(body, markerPrefix),
	}
}

// ListSources returns the markdown files directly under dir, sorted by name.
func ListSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
