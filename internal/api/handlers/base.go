// Package handlers implements the REST API endpoint handlers for Corvid's
// management API.
//
// @title Corvid Management API
// @version 1.0
// @description Zone routing, cache metrics, and runtime stats for the Corvid caching resolver.
//
// @contact.name Corvid
// @contact.url https://github.com/jroosing/corvid
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:8080
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/jroosing/corvid/internal/config"
	"github.com/jroosing/corvid/internal/metrics"
	"github.com/jroosing/corvid/internal/store"
)

// Handler contains dependencies for API handlers.
type Handler struct {
	cfg       *config.Config
	logger    *slog.Logger
	startTime time.Time

	store     *store.Store
	metrics   *metrics.Registry
	cacheSize func() int64

	// reloadRouting rebuilds the resolver's zones.Table from the store and
	// publishes it. Called after every zone write so a CRUD edit takes
	// effect without a restart.
	reloadRouting func(ctx context.Context) error
}

// New creates a new Handler with the given configuration and dependencies.
// cacheSize and reloadRouting may be nil in tests that don't exercise the
// stats or zone-write endpoints.
func New(cfg *config.Config, logger *slog.Logger, st *store.Store, reg *metrics.Registry, cacheSize func() int64, reloadRouting func(context.Context) error) *Handler {
	return &Handler{
		cfg:           cfg,
		logger:        logger,
		startTime:     time.Now(),
		store:         st,
		metrics:       reg,
		cacheSize:     cacheSize,
		reloadRouting: reloadRouting,
	}
}
