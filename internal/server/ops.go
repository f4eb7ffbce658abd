package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
)

// ReadyCheck reports whether one dependency is usable.
type ReadyCheck func(ctx context.Context) error

const readyTimeout = 2 * time.Second

// NewOpsRouter serves liveness, readiness and Prometheus metrics.
//
//	GET /healthz   process is up
//	GET /readyz    every check passed, else 503 with per-check errors
//	GET /metrics   Prometheus exposition
func NewOpsRouter(checks map[string]ReadyCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
		defer cancel()

		code := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				code = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		status := "ok"
		if code != http.StatusOK {
			status = "unavailable"
		}
		writeJSON(w, code, map[string]any{"status": status, "checks": results})
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// StartOpsServer serves handler on addr until ctx is done.
func StartOpsServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown", "err", err)
		}
	}()

	logger.Info("ops server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
