package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/photark-io/photark/internal/actions"
	"github.com/photark-io/photark/internal/explorer"
	"github.com/photark-io/photark/internal/repositories"
	"github.com/photark-io/photark/internal/websocket"
)

// RouterConfig holds all dependencies needed to build the HTTP router.
// It is populated in main.go after all components are initialized and
// passed to NewRouter as a single struct to keep the constructor signature
// manageable as the number of dependencies grows.
type RouterConfig struct {
	Logger *zap.Logger

	// Repositories — used directly by handlers that do not need service-layer logic.
	Accounts    repositories.AccountRepository
	Credentials repositories.CredentialRepository
	Jobs        repositories.JobRepository
	Previews    repositories.PreviewRepository

	// Services.
	Explorer  *explorer.Service
	Actions   *actions.Service
	Refresher SessionRefresher
	Hub       *websocket.Hub
}

// NewRouter builds and returns the fully configured Chi router.
// All REST routes are registered under /api/v1; the WebSocket endpoint and
// the Prometheus scrape endpoint live at the root.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware ---
	// RequestID generates a unique ID for each request, used in logs and
	// response headers for tracing.
	r.Use(middleware.RequestID)

	// RealIP extracts the real client IP from X-Forwarded-For or X-Real-IP
	// headers when the server runs behind a reverse proxy.
	r.Use(middleware.RealIP)

	// RequestLogger logs every request with method, path, status and latency.
	r.Use(RequestLogger(cfg.Logger))

	// Recoverer catches panics in handlers, logs them, and returns a 500
	// instead of crashing the server.
	r.Use(middleware.Recoverer)

	// --- Initialize handlers ---
	accountHandler := NewAccountHandler(cfg.Accounts, cfg.Credentials, cfg.Refresher, cfg.Logger)
	jobHandler := NewJobHandler(cfg.Jobs, cfg.Accounts, cfg.Logger)
	explorerHandler := NewExplorerHandler(cfg.Explorer, cfg.Accounts, cfg.Jobs, cfg.Logger)
	actionHandler := NewActionHandler(cfg.Actions, cfg.Accounts, cfg.Previews, cfg.Logger)
	operationHandler := NewOperationHandler()
	wsHandler := NewWSHandler(cfg.Hub, cfg.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		Ok(w, map[string]any{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", wsHandler.ServeWS)

	r.Route("/api/v1", func(r chi.Router) {

		// Accounts & credentials
		r.Get("/accounts", accountHandler.List)
		r.Post("/accounts", accountHandler.Create)
		r.Get("/accounts/{id}", accountHandler.GetByID)
		r.Delete("/accounts/{id}", accountHandler.Delete)
		r.Post("/accounts/{id}/credentials/cookies/import", accountHandler.ImportCookies)
		r.Post("/accounts/{id}/credentials/cookies/paste", accountHandler.PasteCookies)
		r.Post("/accounts/{id}/credentials/upload-auth", accountHandler.SetUploadAuth)
		r.Post("/accounts/{id}/session/refresh", accountHandler.RefreshSession)

		// Explorer
		r.Get("/explorer/sources", explorerHandler.Sources)
		r.Post("/accounts/{id}/explorer/query", explorerHandler.Query)
		r.Get("/accounts/{id}/explorer/albums", explorerHandler.Albums)
		r.Post("/accounts/{id}/explorer/refresh", explorerHandler.Refresh)

		// Previews & actions
		r.Post("/accounts/{id}/actions/preview", actionHandler.PreviewExplorerAction)
		r.Post("/accounts/{id}/uploads/preview", actionHandler.PreviewUpload)
		r.Post("/accounts/{id}/pipeline/preview", actionHandler.PreviewPipeline)
		r.Post("/accounts/{id}/advanced/preview", actionHandler.PreviewAdvanced)
		r.Get("/accounts/{id}/previews", actionHandler.ListPreviews)
		r.Post("/accounts/{id}/previews/{previewID}/commit", actionHandler.Commit)

		// Jobs
		r.Get("/jobs", jobHandler.List)
		r.Post("/jobs", jobHandler.Create)
		r.Get("/jobs/stream", jobHandler.Stream)
		r.Get("/jobs/{id}", jobHandler.GetByID)
		r.Post("/jobs/{id}/cancel", jobHandler.Cancel)

		// Operation catalog
		r.Get("/operations/catalog", operationHandler.List)
		r.Get("/operations/{name}", operationHandler.GetByName)
	})

	return r
}
