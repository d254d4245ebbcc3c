package chi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/modeld/internal/metrics"
	"github.com/kailas-cloud/modeld/internal/transport/router"
	healthuc "github.com/kailas-cloud/modeld/internal/usecase/health"
)

// HealthChecker produces the aggregated health report.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// NewRouter mounts h behind a catch-all route so that every path,
// known or not, reaches the model router.
func NewRouter(h http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(logger))
	r.Use(metrics.Middleware(resourceLabel))
	r.Handle("/*", h)
	return r
}

func resourceLabel(r *http.Request) string {
	return router.Resource(r.URL.EscapedPath())
}

// NewAdminRouter serves /metrics and /health for operators.
func NewAdminRouter(health HealthChecker, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer(logger))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		report := health.Check(r.Context())
		status := http.StatusOK
		if report.Status != healthuc.Healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
