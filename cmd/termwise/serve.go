package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/termwise/termwise"
	"github.com/termwise/termwise/internal/circuitbreaker"
	"github.com/termwise/termwise/internal/logging"
	"github.com/termwise/termwise/internal/ratelimit"
	"github.com/termwise/termwise/internal/version"
)

// maxBodyBytes bounds request bodies; interpret requests carry command output.
const maxBodyBytes = 1 << 20

// serverOptions tune the HTTP layer.
type serverOptions struct {
	// ClientRPS limits requests per client address; 0 disables the limit.
	ClientRPS   float64
	ClientBurst float64
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		addr string
		opts serverOptions
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			srv := &http.Server{
				Addr:         addr,
				Handler:      newRouter(a.assistant, opts),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 120 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				<-ctx.Done()
				logging.Logger.Info("shutting down gracefully")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logging.Logger.Error("shutdown error", "error", err.Error())
				}
			}()

			logging.Logger.Info("termwise listening",
				"version", version.Short(),
				"addr", addr,
				"backend", a.cfg.Backend.Provider,
				"model", a.cfg.Backend.Model,
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logging.Logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":"+envOr("PORT", "8080"), "listen address")
	cmd.Flags().Float64Var(&opts.ClientRPS, "client-rps", 0, "per-client request rate limit (0 = unlimited)")
	cmd.Flags().Float64Var(&opts.ClientBurst, "client-burst", 0, "per-client burst size (defaults to client-rps)")
	return cmd
}

// newRouter builds the HTTP router.
func newRouter(a *termwise.Assistant, opts serverOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxBodyBytes))
	if opts.ClientRPS > 0 {
		r.Use(clientRateLimit(ratelimit.NewStore(opts.ClientRPS, opts.ClientBurst)))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"backend": a.Backend().Name(),
			"breaker": a.BreakerState().String(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/command", func(w http.ResponseWriter, r *http.Request) {
			var q termwise.Query
			if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
				writeJSONError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
				return
			}
			ans, err := a.GenerateCommand(r.Context(), q)
			writeAnswer(w, r, ans, err)
		})

		r.Post("/interpret", func(w http.ResponseWriter, r *http.Request) {
			var req termwise.Interpretation
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
				return
			}
			ans, err := a.InterpretOutput(r.Context(), req)
			writeAnswer(w, r, ans, err)
		})

		r.Get("/cache", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"caches": a.CacheStats(),
			})
		})

		r.Delete("/cache", func(w http.ResponseWriter, r *http.Request) {
			a.ClearCache()
			logging.FromContext(r.Context()).Info("response caches cleared")
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

type answerResponse struct {
	Text      string `json:"text"`
	Cached    bool   `json:"cached"`
	Shared    bool   `json:"shared,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

func writeAnswer(w http.ResponseWriter, r *http.Request, ans termwise.Answer, err error) {
	if err != nil {
		status, errType := classifyError(err)
		if status >= http.StatusInternalServerError {
			logging.FromContext(r.Context()).Warn("backend request failed", "error", err.Error())
		}
		writeJSONError(w, status, err.Error(), errType)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(answerResponse{
		Text:      ans.Text,
		Cached:    ans.Cached,
		Shared:    ans.Shared,
		LatencyMS: ans.Latency.Milliseconds(),
	})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, termwise.ErrEmptyPrompt), errors.Is(err, termwise.ErrEmptyOutput):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, termwise.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limit_exceeded"
	case errors.Is(err, circuitbreaker.ErrOpen):
		return http.StatusServiceUnavailable, "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "backend_timeout"
	default:
		return http.StatusBadGateway, "backend_error"
	}
}

// clientRateLimit rejects requests from a client address that exceeds its
// token bucket. RealIP must run first.
func clientRateLimit(store *ratelimit.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !store.Allow(host) {
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limit_exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    errType,
		},
	})
}
