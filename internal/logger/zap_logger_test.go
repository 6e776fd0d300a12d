package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestModuleAndDetailsAreAttached(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core))

	l.Info("RECOMMEND", "submitted", map[string]interface{}{"top_k": 5})
	l.Error("API", "request failed", map[string]interface{}{"error": "boom"})
	l.Warn("SESSION", "no details", nil)

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "submitted", entries[0].Message)
	assert.Equal(t, "RECOMMEND", entries[0].ContextMap()["module"])
	assert.Equal(t, map[string]interface{}{"top_k": 5}, entries[0].ContextMap()["details"])

	assert.Equal(t, "boom", entries[1].ContextMap()["error_ref"])
	assert.NotNil(t, entries[2].ContextMap()["details"])
}

func TestFileLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "front.log")
	l := NewFileLogger(path)
	l.Info("CATALOG", "page loaded", map[string]interface{}{"page": 2})
	require.NoError(t, l.Sync())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
	assert.Equal(t, "page loaded", line["message"])
	assert.Equal(t, "CATALOG", line["module"])
	assert.Equal(t, "INFO", line["level"])
}

func TestNopDoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Debug("X", "y", nil)
	l.Error("X", "y", map[string]interface{}{"error": "z"})
}
