package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterFormatsPlainLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Info("task", "created task 4")
	l.LogSecurity("FORBIDDEN", "actor 9 cannot edit event 2")

	out := buf.String()
	assert.Contains(t, out, "INFO  [TASK      ] created task 4")
	assert.Contains(t, out, "WARN  [SECURITY  ] [FORBIDDEN] actor 9 cannot edit event 2")
	assert.Contains(t, out, "logger_test.go:")
}

func TestMinLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)
	l.minLevel = WARN

	l.Debug("API", "noise")
	l.Info("API", "more noise")
	l.Error("API", "kept")

	assert.NotContains(t, buf.String(), "noise")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(Options{Dir: dir, FilePrefix: "test"})
	l.Error("recurrence", "iteration 3 failed")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "test-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		var entry LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Category == "RECURRENCE" {
			found = true
			assert.Equal(t, "ERROR", entry.Level)
			assert.Equal(t, "iteration 3 failed", entry.Message)
		}
	}
	assert.True(t, found)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("Warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel(""))
}
