package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/jroosing/corvid/internal/api/handlers"
	_ "github.com/jroosing/corvid/internal/api/docs"
	"github.com/jroosing/corvid/internal/api/middleware"
	"github.com/jroosing/corvid/internal/config"
)

// RegisterRoutes mounts the health/stats/metrics endpoints unauthenticated
// (they're meant for load balancers and scrapers) and the zone CRUD surface
// behind an optional API key.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", h.Health)
	r.GET("/statz", h.Stats)
	r.GET("/metrics", h.Metrics)

	v1 := r.Group("/api/v1")
	if cfg != nil && cfg.API.APIKey != "" {
		v1.Use(middleware.RequireAPIKey(cfg.API.APIKey))
	}

	v1.GET("/zones", h.ListZones)
	v1.POST("/zones", h.CreateZone)
	v1.GET("/zones/:name", h.GetZone)
	v1.PUT("/zones/:name", h.UpdateZone)
	v1.DELETE("/zones/:name", h.DeleteZone)
}
