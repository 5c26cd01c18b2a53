package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"worktally/internal/platform/logging"
)

func TestJSONLoggerHonoursLevel(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger, err := logging.New(buf, "warn", "json")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("cache write failed", "date", "2024-03-04")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "cache write failed" || entry["date"] != "2024-03-04" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestRejectsUnknownSettings(t *testing.T) {
	t.Parallel()

	if _, err := logging.New(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := logging.New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
	if logging.OrDefault(nil) != slog.Default() {
		t.Fatalf("expected default logger fallback")
	}
}
