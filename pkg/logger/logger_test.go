package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggerDefaultsToNop(t *testing.T) {
	require.NotNil(t, Log)
	assert.NotPanics(t, func() {
		Info("discarded", zap.String("key", "value"))
		Warn("discarded")
	})
	assert.NotNil(t, GetLogger())
}

func TestInitRejectsInvalidLevel(t *testing.T) {
	err := Init("loud", "json", "stdout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInitRejectsInvalidFormat(t *testing.T) {
	err := Init("info", "xml", "stdout")
	require.Error(t, err)
}

func TestInitWritesToFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "tutor.log")
	require.NoError(t, Init("debug", "json", path))

	Info("index built", zap.Int("chunks", 3))
	Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"message":"index built"`)
	assert.Contains(t, string(raw), `"chunks":3`)
}
