// Package api provides Corvid's management REST API: health and stats
// endpoints, a Prometheus metrics render, zone CRUD backed by
// internal/store, Swagger documentation, and a small static operator page.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/corvid/internal/api/handlers"
	"github.com/jroosing/corvid/internal/api/middleware"
	"github.com/jroosing/corvid/internal/config"
	"github.com/jroosing/corvid/internal/metrics"
	"github.com/jroosing/corvid/internal/store"
)

// Server is the management REST API server.
//
// Security note: do not expose the API to untrusted networks without
// setting cfg.API.APIKey.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// Deps bundles the runtime dependencies the API's handlers need beyond
// static configuration.
type Deps struct {
	Store         *store.Store
	Metrics       *metrics.Registry
	CacheSize     func() int64
	ReloadRouting func(ctx context.Context) error
}

// New builds a Server wired to deps and ready to ListenAndServe.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	if cfg == nil {
		panic("api.New: cfg is nil")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.SlogRequestLogger(logger))

	h := handlers.New(cfg, logger, deps.Store, deps.Metrics, deps.CacheSize, deps.ReloadRouting)
	RegisterRoutes(engine, h, cfg)
	mountOperatorPage(engine, logger)

	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{cfg: cfg, logger: logger, engine: engine, httpServer: httpServer}
}

// Addr returns the bound address, for logging.
func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

// Engine exposes the gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
