package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/corvid/internal/api/models"
	"github.com/jroosing/corvid/internal/store"
)

// ListZones godoc
// @Summary List configured zones
// @Tags zones
// @Produce json
// @Success 200 {object} models.ZoneListResponse
// @Security ApiKeyAuth
// @Router /zones [get]
func (h *Handler) ListZones(c *gin.Context) {
	records, err := h.store.ListZones(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	zones := make([]models.Zone, 0, len(records))
	for _, z := range records {
		zones = append(zones, toModelZone(z))
	}
	c.JSON(http.StatusOK, models.ZoneListResponse{Zones: zones, Count: len(zones)})
}

// GetZone godoc
// @Summary Get a zone
// @Tags zones
// @Produce json
// @Param name path string true "Zone name"
// @Success 200 {object} models.Zone
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones/{name} [get]
func (h *Handler) GetZone(c *gin.Context) {
	z, err := h.store.GetZone(c.Request.Context(), c.Param("name"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "zone not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, toModelZone(z))
}

// CreateZone godoc
// @Summary Create a zone
// @Tags zones
// @Accept json
// @Produce json
// @Param zone body models.ZoneWriteRequest true "Zone to create"
// @Success 201 {object} models.Zone
// @Failure 400 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones [post]
func (h *Handler) CreateZone(c *gin.Context) {
	var req models.ZoneWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	rec := fromModelWrite(req)
	if err := h.store.CreateZone(c.Request.Context(), rec); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	h.reload(c)
	c.JSON(http.StatusCreated, req)
}

// UpdateZone godoc
// @Summary Replace a zone's upstreams
// @Tags zones
// @Accept json
// @Produce json
// @Param name path string true "Zone name"
// @Param zone body models.ZoneWriteRequest true "New upstream list"
// @Success 200 {object} models.Zone
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones/{name} [put]
func (h *Handler) UpdateZone(c *gin.Context) {
	var req models.ZoneWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	req.Name = c.Param("name")

	rec := fromModelWrite(req)
	err := h.store.UpdateZone(c.Request.Context(), rec)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "zone not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	h.reload(c)
	c.JSON(http.StatusOK, req)
}

// DeleteZone godoc
// @Summary Delete a zone
// @Tags zones
// @Param name path string true "Zone name"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /zones/{name} [delete]
func (h *Handler) DeleteZone(c *gin.Context) {
	err := h.store.DeleteZone(c.Request.Context(), c.Param("name"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "zone not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	h.reload(c)
	c.Status(http.StatusNoContent)
}

// reload rebuilds and republishes the resolver's routing table after a
// write. Logged, not fatal to the request: the write already committed.
func (h *Handler) reload(c *gin.Context) {
	if h.reloadRouting == nil {
		return
	}
	if err := h.reloadRouting(c.Request.Context()); err != nil && h.logger != nil {
		h.logger.Error("failed to reload zone routing table", "error", err)
	}
}

func toModelZone(z store.ZoneRecord) models.Zone {
	ups := make([]models.UpstreamSpec, 0, len(z.Upstreams))
	for _, u := range z.Upstreams {
		ups = append(ups, models.UpstreamSpec{Kind: u.Kind, Address: u.Address, Host: u.Host})
	}
	return models.Zone{Name: z.Name, Upstreams: ups}
}

func fromModelWrite(req models.ZoneWriteRequest) store.ZoneRecord {
	ups := make([]store.UpstreamRecord, 0, len(req.Upstreams))
	for _, u := range req.Upstreams {
		ups = append(ups, store.UpstreamRecord{Kind: u.Kind, Address: u.Address, Host: u.Host})
	}
	return store.ZoneRecord{Name: req.Name, Upstreams: ups}
}
