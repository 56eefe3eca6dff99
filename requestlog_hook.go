package termwise

import (
	"context"
	"time"

	"github.com/termwise/termwise/internal/logging"
	"github.com/termwise/termwise/internal/requestlog"
)

// RequestLogHook returns an EventHookFunc that records every completed or
// failed request to w. Write errors are logged and otherwise ignored.
func RequestLogHook(w requestlog.Writer) EventHookFunc {
	return func(ctx context.Context, subject string, data map[string]interface{}) {
		if subject != SubjectRequestCompleted && subject != SubjectRequestFailed {
			return
		}
		entry := requestlog.Entry{
			TraceID:      stringField(data, "trace_id"),
			Operation:    stringField(data, "operation"),
			Backend:      stringField(data, "backend"),
			Model:        stringField(data, "model"),
			ErrorMessage: stringField(data, "error"),
		}
		entry.CacheHit, _ = data["cache_hit"].(bool)
		entry.LatencyMS, _ = data["latency_ms"].(int64)
		entry.CreatedAt, _ = data["timestamp"].(time.Time)

		if err := w.Write(ctx, entry); err != nil {
			logging.FromContext(ctx).Warn("request log write failed", "error", err.Error())
		}
	}
}

// OpenRequestLog opens the writer described by cfg. A nil cfg yields a
// NoopWriter and a nil closer.
func OpenRequestLog(cfg *RequestLogConfig) (requestlog.Writer, func() error, error) {
	if cfg == nil {
		return requestlog.NoopWriter{}, nil, nil
	}
	w, err := requestlog.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return w, w.Close, nil
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}
