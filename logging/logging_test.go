package logging

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

func TestRotatingLoggerWritesWeeklyFile(t *testing.T) {
	dir := t.TempDir()
	rl, err := NewRotatingLogger(dir, 1, 0)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer rl.Close()

	if _, err := rl.Write([]byte("first line\n")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	expected := filepath.Join(dir, "mhra-"+weekKey(time.Now())+".log")
	content, err := os.ReadFile(expected)
	if err != nil {
		t.Fatalf("Expected log file %s: %v", expected, err)
	}
	if !strings.Contains(string(content), "first line") {
		t.Errorf("Expected log content, got %q", content)
	}
}

func TestWeekKey(t *testing.T) {
	got := weekKey(time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC))
	if got != "2025-W41" {
		t.Errorf("Expected 2025-W41, got %s", got)
	}
}

func TestRotatingLoggerRotatesOnWeekChange(t *testing.T) {
	dir := t.TempDir()
	rl, err := NewRotatingLogger(dir, 4, 0)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer rl.Close()

	next := time.Now().Add(7 * 24 * time.Hour)
	rl.now = func() time.Time { return next }
	if _, err := rl.Write([]byte("next week\n")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "mhra-"+weekKey(next)+".log")); err != nil {
		t.Errorf("Expected file for next week: %v", err)
	}
}

func TestRotatingLoggerRotatesOnSize(t *testing.T) {
	dir := t.TempDir()
	rl, err := NewRotatingLogger(dir, 4, 32)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer rl.Close()

	line := []byte(strings.Repeat("x", 20) + "\n")
	for range 3 {
		if _, err := rl.Write(line); err != nil {
			t.Fatalf("Failed to write: %v", err)
		}
	}

	week := weekKey(time.Now())
	for _, name := range []string{"mhra-" + week + ".log", "mhra-" + week + "_01.log", "mhra-" + week + "_02.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	rl, err := NewRotatingLogger(dir, 1, 0)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer rl.Close()

	old := filepath.Join(dir, "mhra-2020-W01.log")
	other := filepath.Join(dir, "unrelated.log")
	for _, p := range []string{old, other} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		past := time.Now().Add(-30 * 24 * time.Hour)
		_ = os.Chtimes(p, past, past)
	}

	deleted, err := rl.cleanupOldLogs()
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted file, got %d", deleted)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("Expected unrelated file to be kept")
	}
}

func TestSetupWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	logger, closer := Setup(Options{Dir: dir, RetentionWeeks: 1, Level: slog.LevelInfo, Console: &console})
	if closer == nil {
		t.Fatalf("Expected a file closer")
	}

	logger.Info("run completed", "documents", 3)
	logger.Debug("hidden")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !strings.Contains(console.String(), "run completed") || strings.Contains(console.String(), "hidden") {
		t.Errorf("Unexpected console output: %s", console.String())
	}
	content, _ := os.ReadFile(filepath.Join(dir, "mhra-"+weekKey(time.Now())+".log"))
	if !strings.Contains(string(content), `"documents":3`) {
		t.Errorf("Expected JSON record in file, got %s", content)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var out strings.Builder
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))

	t.Run("probe endpoints are not logged", func(t *testing.T) {
		out.Reset()
		for _, path := range []string{"/health", "/metrics"} {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		}
		if out.Len() != 0 {
			t.Errorf("Expected no logs, got %s", out.String())
		}
	})

	t.Run("other endpoints are logged", func(t *testing.T) {
		out.Reset()
		req := httptest.NewRequest(http.MethodGet, "/summary?x=1", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-1"))
		handler.ServeHTTP(httptest.NewRecorder(), req)

		logs := out.String()
		for _, want := range []string{"request_id=req-1", "path=/summary", "query=x=1", "status_code=202", "bytes_written=2"} {
			if !strings.Contains(logs, want) {
				t.Errorf("Expected %q in %s", want, logs)
			}
		}
	})
}
