package vector

import (
	"context"
	"math"
	"sort"
)

// Metadata travels with every chunk. Pages holds the page marker lines found
// in the source document, in file order.
type Metadata struct {
	Source string   `json:"source"`
	Topic  string   `json:"topic"`
	Order  int      `json:"order"`
	Title  string   `json:"title"`
	Pages  []string `json:"pages"`
}

type Chunk struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

type Record struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

type Match struct {
	Record
	Score float32
}

// Store persists embedded chunks. Exists is the only build gate; no staleness
// check is performed on an existing index.
type Store interface {
	Exists(ctx context.Context) (bool, error)
	Save(ctx context.Context, records []Record) error
	Search(ctx context.Context, embedding []float32, k int) ([]Match, error)
}

func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Rank scores records against the query and returns at most k of them,
// highest score first. Records with a mismatched dimension are skipped.
func Rank(records []Record, query []float32, k int) []Match {
	matches := make([]Match, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) != len(query) {
			continue
		}
		matches = append(matches, Match{Record: r, Score: CosineSimilarity(query, r.Embedding)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k > 0 && k < len(matches) {
		matches = matches[:k]
	}
	return matches
}
