package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogBuffer collects JSON log lines written by concurrent goroutines, such
// as workers and HTTP handlers, so tests can inspect them afterwards.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Entries decodes every line written so far.
func (b *LogBuffer) Entries() ([]map[string]any, error) {
	var entries []map[string]any
	for _, line := range strings.Split(b.String(), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Find returns the most recent entry whose message is msg.
func (b *LogBuffer) Find(msg string) (map[string]any, bool) {
	entries, err := b.Entries()
	if err != nil {
		return nil, false
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i][slog.MessageKey] == msg {
			return entries[i], true
		}
	}
	return nil, false
}

// NewBufferLogger returns a debug-level JSON logger writing to a fresh
// buffer. The process default logger is left alone, so parallel tests may
// use it.
func NewBufferLogger() (*LogBuffer, *slog.Logger) {
	buf := &LogBuffer{}
	return buf, slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// SetupTestLogger is NewBufferLogger that also installs the logger as the
// process default until the test ends. Not for parallel tests.
func SetupTestLogger(t *testing.T) (*LogBuffer, *slog.Logger) {
	t.Helper()

	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf, logger := NewBufferLogger()
	slog.SetDefault(logger)
	return buf, logger
}

// AssertLogContains fails the test unless the raw log output contains content.
func AssertLogContains(t *testing.T, buf *LogBuffer, content string) {
	t.Helper()

	if logs := buf.String(); !strings.Contains(logs, content) {
		t.Errorf("expected logs to contain %q, got:\n%s", content, logs)
	}
}

// AssertLogField fails the test unless some entry has field set to expected.
// Numbers decode as float64.
func AssertLogField(t *testing.T, buf *LogBuffer, field string, expected any) {
	t.Helper()

	entries, err := buf.Entries()
	if err != nil {
		t.Fatalf("failed to decode log entries: %v", err)
	}
	for _, entry := range entries {
		if v, ok := entry[field]; ok && v == expected {
			return
		}
	}
	t.Errorf("no log entry has %s=%v among %d entries", field, expected, len(entries))
}
