package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContextAddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")
	t.Cleanup(func() { Setup("", "") })

	FromContext(WithTraceID(context.Background(), "abc123")).Info("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["trace_id"] != "abc123" || line["msg"] != "hello" {
		t.Errorf("unexpected log line: %v", line)
	}
}

func TestTraceIDFromContext_Nil(t *testing.T) {
	//nolint:staticcheck
	if got := TraceIDFromContext(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestMiddleware(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if seen != "req-1" || w.Header().Get("X-Request-ID") != "req-1" {
		t.Errorf("incoming id not reused: seen=%q header=%q", seen, w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if len(seen) != 32 || w.Header().Get("X-Request-ID") != seen {
		t.Errorf("expected generated 32-char id, got %q", seen)
	}
}
