package server

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/backyonatan-alt/restable/internal/activity"
	"github.com/backyonatan-alt/restable/internal/cache"
	"github.com/backyonatan-alt/restable/internal/config"
	"github.com/backyonatan-alt/restable/internal/pipeline"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	cache    *cache.Cache
	activity *activity.Tracker // optional
	limiter  *rate.Limiter
}

func New(cfg *config.Config, p *pipeline.Pipeline, cache *cache.Cache, tracker *activity.Tracker) *Server {
	limit := rate.Inf
	if cfg.FetchRate > 0 {
		limit = rate.Limit(cfg.FetchRate)
	}
	burst := cfg.FetchBurst
	if burst < 1 {
		burst = 1
	}
	return &Server{
		cfg:      cfg,
		pipeline: p,
		cache:    cache,
		activity: tracker,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Router returns the HTTP handler with all routes registered.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/url", s.handleURL)
	mux.Handle("GET /api/preview", s.rateLimit(http.HandlerFunc(s.handlePreview)))
	mux.Handle("GET /api/export.csv", s.rateLimit(http.HandlerFunc(s.handleExport)))
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/exports", s.handleExports)
	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.corsMiddleware(mux)
}
