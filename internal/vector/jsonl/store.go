package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/vector"
	"github.com/morph-tutor/backend/pkg/logger"
)

// Store keeps the index as one JSON record per line. The file is written to a
// temporary sibling and renamed into place, so Exists never sees a partial index.
type Store struct {
	path string

	mu      sync.RWMutex
	records []vector.Record
	loaded  bool
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat index: %w", err)
}

func (s *Store) Save(ctx context.Context, records []vector.Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp index: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := bufio.NewWriter(tmp)
	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return err
		}
		if err := encoder.Encode(r); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write index entry: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp index: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to publish index: %w", err)
	}

	s.mu.Lock()
	s.records = records
	s.loaded = true
	s.mu.Unlock()

	logger.Info("Vector index written", zap.String("path", s.path), zap.Int("records", len(records)))
	return nil
}

func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]vector.Match, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	return vector.Rank(records, embedding, k), nil
}

func (s *Store) load() ([]vector.Record, error) {
	s.mu.RLock()
	if s.loaded {
		records := s.records
		s.mu.RUnlock()
		return records, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.records, nil
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []vector.Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r vector.Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("failed to parse index line %d: %w", lineNo, err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	s.records = records
	s.loaded = true

	logger.Debug("Vector index loaded", zap.String("path", s.path), zap.Int("records", len(records)))
	return records, nil
}
