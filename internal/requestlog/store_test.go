package requestlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteWriter_WriteListDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.db")
	w, err := NewSQLiteWriter(path)
	if err != nil {
		t.Fatalf("new sqlite writer: %v", err)
	}
	t.Cleanup(func() {
		_ = w.Close()
	})

	now := time.Now().UTC().Truncate(time.Second)
	entries := []Entry{
		{
			TraceID:   "trace-1",
			Operation: "command",
			Backend:   "ollama",
			Model:     "llama3.2",
			LatencyMS: 900,
			CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			TraceID:   "trace-2",
			Operation: "command",
			Backend:   "ollama",
			Model:     "llama3.2",
			CacheHit:  true,
			CreatedAt: now.Add(-1 * time.Hour),
		},
		{
			TraceID:      "trace-3",
			Operation:    "interpret",
			Backend:      "openai",
			Model:        "gpt-4o-mini",
			LatencyMS:    30000,
			ErrorMessage: "context deadline exceeded",
			CreatedAt:    now,
		},
	}

	for _, entry := range entries {
		if err := w.Write(context.Background(), entry); err != nil {
			t.Fatalf("write request log entry: %v", err)
		}
	}

	result, err := w.List(context.Background(), Query{Limit: 10})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if result.Total != 3 || len(result.Data) != 3 {
		t.Fatalf("expected 3 logs, total=%d len=%d", result.Total, len(result.Data))
	}
	if result.Data[0].TraceID != "trace-3" {
		t.Fatalf("expected newest first, got %s", result.Data[0].TraceID)
	}
	if !result.Data[1].CacheHit || result.Data[0].ErrorMessage != "context deadline exceeded" {
		t.Fatalf("fields not round-tripped: %+v", result.Data[:2])
	}

	page, err := w.List(context.Background(), Query{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if page.Total != 3 || len(page.Data) != 1 || page.Data[0].TraceID != "trace-2" {
		t.Fatalf("unexpected page: total=%d data=%+v", page.Total, page.Data)
	}

	filtered, err := w.List(context.Background(), Query{Limit: 10, Operation: "interpret"})
	if err != nil {
		t.Fatalf("list filtered logs: %v", err)
	}
	if filtered.Total != 1 || len(filtered.Data) != 1 {
		t.Fatalf("expected 1 interpret log, total=%d len=%d", filtered.Total, len(filtered.Data))
	}
	if filtered.Data[0].TraceID != "trace-3" {
		t.Fatalf("unexpected filtered trace id: %s", filtered.Data[0].TraceID)
	}

	deleted, err := w.Delete(context.Background(), now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("delete logs: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected deleted=2, got %d", deleted)
	}

	remaining, err := w.List(context.Background(), Query{Limit: 10})
	if err != nil {
		t.Fatalf("list remaining logs: %v", err)
	}
	if remaining.Total != 1 || len(remaining.Data) != 1 {
		t.Fatalf("expected 1 remaining log, total=%d len=%d", remaining.Total, len(remaining.Data))
	}
	if remaining.Data[0].TraceID != "trace-3" {
		t.Fatalf("unexpected remaining trace id: %s", remaining.Data[0].TraceID)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestNewPostgresWriter_RequiresDSN(t *testing.T) {
	if _, err := NewPostgresWriter("  "); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestPostgresWriterContract(t *testing.T) {
	dsn := os.Getenv("TERMWISE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TERMWISE_TEST_POSTGRES_DSN to run Postgres requestlog integration tests")
	}

	w, err := Open("postgres", dsn)
	if err != nil {
		t.Fatalf("new postgres writer: %v", err)
	}
	t.Cleanup(func() {
		_, _ = w.db.Exec("DELETE FROM request_logs")
		_ = w.Close()
	})

	_, _ = w.db.Exec("DELETE FROM request_logs")

	entry := Entry{
		TraceID:   "pg-trace",
		Operation: "command",
		Backend:   "openai",
		Model:     "gpt-4o-mini",
		LatencyMS: 420,
		CreatedAt: time.Now().UTC(),
	}
	if err := w.Write(context.Background(), entry); err != nil {
		t.Fatalf("write postgres log: %v", err)
	}

	result, err := w.List(context.Background(), Query{Limit: 10, Backend: "openai"})
	if err != nil {
		t.Fatalf("list postgres logs: %v", err)
	}
	if result.Total != 1 || len(result.Data) != 1 {
		t.Fatalf("expected 1 postgres log, total=%d len=%d", result.Total, len(result.Data))
	}
}
