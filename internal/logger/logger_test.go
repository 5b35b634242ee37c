package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	var file bytes.Buffer
	l := New(nil, &file, DEBUG)

	l.LogPurchase("COMPLETE", "pay-1", "2 tickets")
	l.Warn("referral", "deficit recorded")

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	require.Len(t, lines, 2)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "PURCHASE", entry.Category)
	assert.Equal(t, "[COMPLETE] pay-1 - 2 tickets", entry.Message)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "REFERRAL", entry.Category)
}

func TestLoggerRespectsMinLevel(t *testing.T) {
	var file bytes.Buffer
	l := New(nil, &file, WARN)

	l.Info("API", "dropped")
	l.LogDatabase("INSERT", "tickets", "dropped")
	l.Error("API", "kept")

	assert.Equal(t, 1, strings.Count(file.String(), "\n"))
	assert.Contains(t, file.String(), "kept")

	l.SetLevel(DEBUG)
	l.Debug("API", "now kept")
	assert.Equal(t, 2, strings.Count(file.String(), "\n"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Info("X", "y") })
}
