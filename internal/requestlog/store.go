// Package requestlog persists one record per assistant request to SQLite or
// Postgres so past questions and their latency can be reviewed later.
package requestlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DefaultSQLitePath is used when the SQLite DSN is empty.
const DefaultSQLitePath = "termwise-requests.db"

// Entry is a single recorded request.
type Entry struct {
	TraceID      string    `json:"trace_id,omitempty"`
	Operation    string    `json:"operation"`
	Backend      string    `json:"backend"`
	Model        string    `json:"model"`
	CacheHit     bool      `json:"cache_hit"`
	LatencyMS    int64     `json:"latency_ms"`
	ErrorMessage string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Query filters List results. Zero fields match everything.
type Query struct {
	Limit     int
	Offset    int
	Operation string
	Backend   string
}

// ListResult is one page of entries, newest first, with the total match count.
type ListResult struct {
	Data  []Entry `json:"data"`
	Total int     `json:"total"`
}

// Writer persists request log entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// Reader lists persisted entries.
type Reader interface {
	List(ctx context.Context, q Query) (ListResult, error)
}

// NoopWriter ignores all log writes.
type NoopWriter struct{}

func (NoopWriter) Write(_ context.Context, _ Entry) error { return nil }

// SQLWriter persists entries to SQLite/Postgres.
type SQLWriter struct {
	db      *sql.DB
	dialect string
}

// Open returns a writer for driver ("sqlite", the default, or "postgres").
func Open(driver, dsn string) (*SQLWriter, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteWriter(dsn)
	case "postgres":
		return NewPostgresWriter(dsn)
	default:
		return nil, fmt.Errorf("unknown request log driver: %q", driver)
	}
}

func NewSQLiteWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = DefaultSQLitePath
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite request log writer: %w", err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY
	// from concurrent hooks.
	db.SetMaxOpenConns(1)
	w := &SQLWriter{db: db, dialect: "sqlite"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func NewPostgresWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres request log writer: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "postgres"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLWriter) init() error {
	if err := w.db.Ping(); err != nil {
		return fmt.Errorf("ping %s request log writer: %w", w.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS request_logs (
	id INTEGER PRIMARY KEY,
	trace_id TEXT,
	operation TEXT NOT NULL,
	backend TEXT NOT NULL,
	model TEXT,
	cache_hit BOOLEAN NOT NULL,
	latency_ms INTEGER NOT NULL,
	error_message TEXT,
	created_at TIMESTAMP NOT NULL
);`

	if w.dialect == "postgres" {
		ddl = `
CREATE TABLE IF NOT EXISTS request_logs (
	id BIGSERIAL PRIMARY KEY,
	trace_id TEXT,
	operation TEXT NOT NULL,
	backend TEXT NOT NULL,
	model TEXT,
	cache_hit BOOLEAN NOT NULL,
	latency_ms BIGINT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL
);`
	}

	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize request log schema: %w", err)
	}
	return nil
}

// placeholder returns the n-th (1-based) bind parameter for the dialect.
func (w *SQLWriter) placeholder(n int) string {
	if w.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (w *SQLWriter) Write(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	// SQLite stores timestamps as text; a single zone keeps them ordered.
	entry.CreatedAt = entry.CreatedAt.UTC()

	params := make([]string, 8)
	for i := range params {
		params[i] = w.placeholder(i + 1)
	}
	query := `INSERT INTO request_logs(trace_id, operation, backend, model, cache_hit, latency_ms, error_message, created_at)
	VALUES(` + strings.Join(params, ", ") + `)`

	_, err := w.db.ExecContext(ctx, query,
		entry.TraceID,
		entry.Operation,
		entry.Backend,
		entry.Model,
		entry.CacheHit,
		entry.LatencyMS,
		entry.ErrorMessage,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write request log: %w", err)
	}
	return nil
}

// List returns entries matching q, newest first.
func (w *SQLWriter) List(ctx context.Context, q Query) (ListResult, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	var (
		where []string
		args  []interface{}
	)
	if q.Operation != "" {
		args = append(args, q.Operation)
		where = append(where, "operation = "+w.placeholder(len(args)))
	}
	if q.Backend != "" {
		args = append(args, q.Backend)
		where = append(where, "backend = "+w.placeholder(len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var result ListResult
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM request_logs"+clause, args...).Scan(&result.Total); err != nil {
		return ListResult{}, fmt.Errorf("count request logs: %w", err)
	}

	pageArgs := append(append([]interface{}{}, args...), q.Limit, q.Offset)
	query := `SELECT trace_id, operation, backend, model, cache_hit, latency_ms, error_message, created_at
	FROM request_logs` + clause + ` ORDER BY created_at DESC, id DESC LIMIT ` +
		w.placeholder(len(args)+1) + ` OFFSET ` + w.placeholder(len(args)+2)

	rows, err := w.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list request logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result.Data = make([]Entry, 0, q.Limit)
	for rows.Next() {
		var (
			e              Entry
			traceID, model sql.NullString
			errMsg         sql.NullString
		)
		if err := rows.Scan(&traceID, &e.Operation, &e.Backend, &model, &e.CacheHit, &e.LatencyMS, &errMsg, &e.CreatedAt); err != nil {
			return ListResult{}, fmt.Errorf("scan request log: %w", err)
		}
		e.TraceID = traceID.String
		e.Model = model.String
		e.ErrorMessage = errMsg.String
		result.Data = append(result.Data, e)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list request logs: %w", err)
	}
	return result, nil
}

// Delete removes entries created before the given time and reports how
// many were removed.
func (w *SQLWriter) Delete(ctx context.Context, before time.Time) (int64, error) {
	res, err := w.db.ExecContext(ctx, "DELETE FROM request_logs WHERE created_at < "+w.placeholder(1), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete request logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete request logs: %w", err)
	}
	return n, nil
}

func (w *SQLWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}
