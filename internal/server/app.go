package server

import (
	"database/sql"
	"net/http"

	"fiberqc/internal/audit"
	"fiberqc/internal/config"
	"fiberqc/internal/handlers/production"
	"fiberqc/internal/logger"
	"fiberqc/internal/response"
	"fiberqc/internal/store"
	"fiberqc/internal/websocket"
)

// App holds shared dependencies for the application.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Store   *store.Store
	Hub     *websocket.Hub
	Audit   *audit.Recorder
	Log     *logger.Logger
	API     *production.Handler
	Limiter *RateLimiter
}

// NewApp wires the store, change-event hub, audit recorder and handlers
// over an open database.
func NewApp(cfg *config.Config, db *sql.DB, log *logger.Logger) *App {
	if log == nil {
		log = logger.Nop()
	}
	st := store.New(db)
	hub := websocket.NewHub(log.With("component", "ws"), cfg.HTTP.AllowedOrigin)
	rec := audit.New(db, hub, log)
	return &App{
		Config:  cfg,
		DB:      db,
		Store:   st,
		Hub:     hub,
		Audit:   rec,
		Log:     log,
		API:     production.New(st, rec, log, cfg.Development()),
		Limiter: NewRateLimiter(),
	}
}

// Routes registers every API route on a new mux. Anything unmatched gets a
// JSON 404.
func (a *App) Routes() *http.ServeMux {
	h := a.API
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health)

	mux.HandleFunc("POST /api/bare-fibers", h.CreateBareFiber)
	mux.HandleFunc("GET /api/bare-fibers", h.ListBareFibers)
	mux.HandleFunc("GET /api/bare-fibers/available", h.ListAvailableFibers)
	mux.HandleFunc("GET /api/bare-fibers/{fiberId}", h.GetBareFiber)

	mux.HandleFunc("POST /api/cables", h.CreateCable)
	mux.HandleFunc("GET /api/cables", h.ListCables)
	mux.HandleFunc("GET /api/cables/{cableId}", h.GetCable)
	mux.HandleFunc("POST /api/cables/{cableId}/fibers", h.AddCableFibers)
	mux.HandleFunc("GET /api/cables/{cableId}/fibers", h.ListCableFibers)
	mux.HandleFunc("PUT /api/cables/{cableId}/status", h.UpdateCableStatus)
	mux.HandleFunc("GET /api/cables/{cableId}/optical-length", h.GetOpticalLength)
	mux.HandleFunc("GET /api/cables/{cableId}/report", h.CableReport)

	mux.HandleFunc("POST /api/qc-checks", h.CreateQCCheck)
	mux.HandleFunc("GET /api/qc-checks", h.ListQCChecks)
	mux.HandleFunc("GET /api/qc-checks/{cableId}", h.GetLatestQCCheck)

	mux.HandleFunc("GET /api/exports/{entity}", h.Export)
	mux.HandleFunc("GET /api/audit", h.ListAudit)

	mux.Handle("GET /ws", a.Hub)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response.Err(w, "Route not found", http.StatusNotFound)
	})
	return mux
}

// Handler returns the routes wrapped in the middleware chain, outermost
// first: request id, logging, security headers, CORS, rate limiting, API
// keys, gzip, panic recovery.
func (a *App) Handler() http.Handler {
	var h http.Handler = a.Routes()
	h = Recover(a.Log, a.Config.Development())(h)
	h = GzipMiddleware(h)
	h = RequireAPIKey(a.Config.Auth.APIKeyHashes)(h)
	h = RateLimitMiddleware(a.Limiter, a.Config.RateLimit.PerMinute, a.Config.TrustedProxies())(h)
	h = CORS(a.Config.HTTP.AllowedOrigin)(h)
	h = SecurityHeaders(h)
	h = LoggingMiddleware(a.Log)(h)
	h = RequestID(h)
	return h
}
