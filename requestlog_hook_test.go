package termwise

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/termwise/termwise/internal/requestlog"
)

type recordingWriter struct {
	mu      sync.Mutex
	entries []requestlog.Entry
	written chan struct{}
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{written: make(chan struct{}, 8)}
}

func (w *recordingWriter) Write(_ context.Context, e requestlog.Entry) error {
	w.mu.Lock()
	w.entries = append(w.entries, e)
	w.mu.Unlock()
	w.written <- struct{}{}
	return nil
}

func (w *recordingWriter) wait(t *testing.T, n int) []requestlog.Entry {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-w.written:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for entry %d", i+1)
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]requestlog.Entry(nil), w.entries...)
}

func TestRequestLogHook_RecordsRequests(t *testing.T) {
	p := &mockProvider{name: "mock", text: "ls"}
	a := newTestAssistant(t, p, nil)
	w := newRecordingWriter()
	a.AddHook(RequestLogHook(w))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := a.GenerateCommand(ctx, Query{Prompt: "list"}); err != nil {
			t.Fatal(err)
		}
	}

	entries := w.wait(t, 2)
	hits := 0
	for _, e := range entries {
		if e.Operation != OperationCommand || e.Backend != "mock" || e.Model != DefaultModel {
			t.Errorf("unexpected entry %+v", e)
		}
		if e.CreatedAt.IsZero() {
			t.Error("expected timestamp to be recorded")
		}
		if e.CacheHit {
			hits++
		}
	}
	if hits != 1 {
		t.Errorf("got %d cache hits, want 1", hits)
	}
}

func TestRequestLogHook_RecordsFailures(t *testing.T) {
	p := &mockProvider{name: "mock", err: errors.New("unreachable")}
	a := newTestAssistant(t, p, nil)
	w := newRecordingWriter()
	a.AddHook(RequestLogHook(w))

	if _, err := a.InterpretOutput(context.Background(), Interpretation{Output: "x"}); err == nil {
		t.Fatal("expected error")
	}
	entries := w.wait(t, 1)
	if entries[0].ErrorMessage != "unreachable" || entries[0].Operation != OperationInterpret {
		t.Errorf("unexpected entry %+v", entries[0])
	}
}

func TestRequestLogHook_IgnoresOtherSubjects(t *testing.T) {
	w := newRecordingWriter()
	RequestLogHook(w)(context.Background(), "something.else", map[string]interface{}{})
	if len(w.entries) != 0 {
		t.Error("unexpected entry for unrelated subject")
	}
}

func TestOpenRequestLog(t *testing.T) {
	w, closer, err := OpenRequestLog(nil)
	if err != nil || closer != nil {
		t.Fatalf("nil config: closer=%v err=%v", closer != nil, err)
	}
	if _, ok := w.(requestlog.NoopWriter); !ok {
		t.Errorf("expected NoopWriter, got %T", w)
	}

	path := filepath.Join(t.TempDir(), "log.db")
	w, closer, err = OpenRequestLog(&RequestLogConfig{Driver: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = closer() }()
	if err := w.Write(context.Background(), requestlog.Entry{Operation: "command", Backend: "mock"}); err != nil {
		t.Fatalf("write: %v", err)
	}
}
