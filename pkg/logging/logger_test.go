package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/df07/go-sphere-tracer/pkg/core"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"", InfoLevel, false},
		{" INFO ", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLevel(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLoggerWritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, InfoLevel).With(String("scene", "cover"))

	logger.Debug("hidden")
	logger.Info("pass complete", Int("pass", 3), Duration("elapsed", 1500*time.Millisecond), Error(errors.New("boom")))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 line, got %d: %s", len(entries), buf.String())
	}
	e := entries[0]
	if e["level"] != "info" || e["message"] != "pass complete" {
		t.Errorf("Unexpected level/message: %v", e)
	}
	if e["scene"] != "cover" {
		t.Errorf("Expected inherited field, got %v", e["scene"])
	}
	if e["pass"] != float64(3) {
		t.Errorf("Expected pass 3, got %v", e["pass"])
	}
	if e["elapsed"] != "1.5s" {
		t.Errorf("Expected elapsed 1.5s, got %v", e["elapsed"])
	}
	if e["error"] != "boom" {
		t.Errorf("Expected error boom, got %v", e["error"])
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("Expected timestamp field")
	}
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWriterLogger(&buf, DebugLevel)
	_ = parent.With(String("child", "yes"))
	parent.Info("parent")

	entries := decodeLines(t, &buf)
	if _, ok := entries[0]["child"]; ok {
		t.Error("Parent logger picked up child field")
	}
}

func TestContextLogger(t *testing.T) {
	logger := NewTestLogger()
	ctx := ContextWithLogger(context.Background(), logger)
	if LoggerFromContext(ctx) != logger {
		t.Error("Expected context logger")
	}
	if LoggerFromContext(context.Background()) != L() {
		t.Error("Expected global fallback")
	}
}

func TestNewWithFile(t *testing.T) {
	prev := L()
	defer ReplaceGlobals(prev)

	path := filepath.Join(t.TempDir(), "logs", "render.log")
	var out bytes.Buffer
	logger, err := New(Options{Level: "warn", Path: path, Output: &out})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("skipped")
	logger.Warn("kept")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"kept"`) || strings.Contains(string(data), `"skipped"`) {
		t.Errorf("Unexpected file contents: %s", data)
	}
	if out.String() != string(data) {
		t.Error("Expected output mirror to match file")
	}
	if L() != logger {
		t.Error("Expected New to install the global logger")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Options{Level: "chatty", Output: &bytes.Buffer{}}); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestPrintfAdapter(t *testing.T) {
	var buf bytes.Buffer
	var sink core.Logger = NewPrintf(NewWriterLogger(&buf, DebugLevel), DebugLevel)
	sink.Printf("Scanlines remaining: %d\n", 12)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["message"] != "Scanlines remaining: 12" {
		t.Errorf("Unexpected entries: %v", entries)
	}
	if entries[0]["level"] != "debug" {
		t.Errorf("Expected debug level, got %v", entries[0]["level"])
	}
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, DebugLevel)

	var seen *Logger
	handler := HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = LoggerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) != "abc123" {
		t.Errorf("Expected request id echoed, got %q", rec.Header().Get(RequestIDHeader))
	}
	if seen == nil || seen.fields[RequestIDField] != "abc123" {
		t.Error("Expected handler to see a logger tagged with the request id")
	}
	if !strings.Contains(buf.String(), "request received") {
		t.Errorf("Expected request log line, got %s", buf.String())
	}
}
