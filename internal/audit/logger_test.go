package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var fixedNow = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestLogNoopForNilLoggerAndEmptyPath(t *testing.T) {
	var nilLogger *Logger
	if err := nilLogger.Log(Event{Operation: "op"}); err != nil {
		t.Fatalf("nil logger should be noop: %v", err)
	}
	if err := New("", nil).Record("op", "", nil, nil); err != nil {
		t.Fatalf("empty-path logger should be noop: %v", err)
	}
}

func TestRecordWritesJSONLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit", "events.log")
	logger := New(logPath, fixedNow)

	if err := logger.Record("repo.add", "acme", nil, map[string]string{"url": "https://github.com/acme/manifests"}); err != nil {
		t.Fatalf("record first event: %v", err)
	}
	failure := fmt.Errorf("SYNC_REPOSITORY: acme: %w", errors.New("unavailable"))
	if err := logger.Record("sync", "acme", failure, nil); err != nil {
		t.Fatalf("record second event: %v", err)
	}

	events, err := ReadEvents(logPath)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	first := events[0]
	if first.Timestamp != "2024-06-01T12:00:00Z" || first.Operation != "repo.add" || first.Status != StatusOK {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if first.Fields["url"] != "https://github.com/acme/manifests" {
		t.Fatalf("unexpected first event fields: %+v", first.Fields)
	}
	second := events[1]
	if second.Status != StatusError || second.Code != "SYNC_REPOSITORY" || second.Message != failure.Error() {
		t.Fatalf("unexpected second event: %+v", second)
	}
}

func TestErrorCode(t *testing.T) {
	cases := map[string]string{
		"REPO_CONFIG: bad url":      "REPO_CONFIG",
		"open foo: no such file":    "",
		"no separator at all":       "",
		"DOC_STATE_PARSE2: invalid": "DOC_STATE_PARSE2",
	}
	for msg, want := range cases {
		if got := ErrorCode(errors.New(msg)); got != want {
			t.Fatalf("ErrorCode(%q) = %q, want %q", msg, got, want)
		}
	}
	if ErrorCode(nil) != "" {
		t.Fatalf("expected empty code for nil error")
	}
}

func TestReadEventsMissingFile(t *testing.T) {
	events, err := ReadEvents(filepath.Join(t.TempDir(), "missing.log"))
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no events, got %v: %v", events, err)
	}
}

func TestLogMkdirAllFailure(t *testing.T) {
	tmp := t.TempDir()
	blockedPath := filepath.Join(tmp, "blocked")
	if err := os.WriteFile(blockedPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("create blocking file: %v", err)
	}

	logger := New(filepath.Join(blockedPath, "events.log"), nil)
	if err := logger.Log(Event{Operation: "sync"}); err == nil {
		t.Fatalf("expected mkdir failure")
	}
}

func TestLogOpenFileFailure(t *testing.T) {
	tmp := t.TempDir()
	dirPath := filepath.Join(tmp, "log-dir")
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		t.Fatalf("create directory path: %v", err)
	}

	logger := New(dirPath, nil)
	if err := logger.Log(Event{Operation: "sync"}); err == nil {
		t.Fatalf("expected open file failure")
	}
}
