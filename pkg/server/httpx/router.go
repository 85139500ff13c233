package httpx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/server/api"
	v1 "github.com/reveriehq/reverie/pkg/server/api/v1"
)

// NewRouter creates and configures the main HTTP router.
//
// The router uses Go 1.22+ enhanced pattern matching for cleaner routes.
// API routes are mounted conditionally on cfg.APIEnabled; health and
// metrics endpoints are always enabled.
func NewRouter(cfg config.ServerConfig, deps *api.Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Health and metrics endpoints (always enabled)
	mux.HandleFunc("GET /healthz", HealthzHandler)
	mux.HandleFunc("GET /readyz", v1.ReadyzHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	if cfg.APIEnabled {
		mux.HandleFunc("POST /api/v1/journals", v1.CreateJournalHandler(deps))
		mux.HandleFunc("GET /api/v1/journals/{id}", v1.GetJournalHandler(deps))
		mux.HandleFunc("POST /api/v1/journals/{id}/jobs/{type}", v1.EnqueueJournalJobHandler(deps))
		mux.HandleFunc("GET /api/v1/journals/{id}/jobs/{type}", v1.GetJournalJobHandler(deps))
		mux.HandleFunc("POST /api/v1/backups", v1.CreateBackupHandler(deps))
		mux.HandleFunc("POST /api/v1/restores", v1.CreateRestoreHandler(deps))
		mux.HandleFunc("GET /api/v1/jobs/{type}/{id}", v1.GetJobHandler(deps))
		mux.HandleFunc("GET /api/v1/queues", v1.QueueStatsHandler(deps))
	}

	return mux
}

// HealthzHandler responds with 200 OK if the server process is alive.
// This endpoint is used by load balancers and orchestrators for liveness checks.
//
// It does not check dependencies (database, queues, etc.) - just process health.
// For comprehensive readiness checks, use /readyz instead.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
