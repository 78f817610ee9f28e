package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/corvid/internal/api/handlers"
	"github.com/jroosing/corvid/internal/api/models"
	"github.com/jroosing/corvid/internal/config"
	"github.com/jroosing/corvid/internal/store"
)

func newZonesRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "zones.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := handlers.New(&config.Config{}, nil, st, nil, nil, nil)

	r := gin.New()
	r.GET("/zones", h.ListZones)
	r.GET("/zones/:name", h.GetZone)
	r.POST("/zones", h.CreateZone)
	r.PUT("/zones/:name", h.UpdateZone)
	r.DELETE("/zones/:name", h.DeleteZone)
	return r, st
}

func TestCreateAndListZones(t *testing.T) {
	r, _ := newZonesRouter(t)

	body, _ := json.Marshal(models.ZoneWriteRequest{
		Name:      "example.com.",
		Upstreams: []models.UpstreamSpec{{Kind: "udp", Address: "1.1.1.1:53"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/zones", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/zones", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list models.ZoneListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "example.com.", list.Zones[0].Name)
}

func TestGetZoneNotFound(t *testing.T) {
	r, _ := newZonesRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/zones/nope.", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateAndDeleteZone(t *testing.T) {
	r, _ := newZonesRouter(t)

	createBody := mustMarshal(models.ZoneWriteRequest{
		Name:      "example.com.",
		Upstreams: []models.UpstreamSpec{{Kind: "udp", Address: "1.1.1.1:53"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/zones", bytes.NewReader(createBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	updateBody := mustMarshal(models.ZoneWriteRequest{
		Upstreams: []models.UpstreamSpec{{Kind: "udp", Address: "8.8.8.8:53"}},
	})
	putReq := httptest.NewRequest(http.MethodPut, "/zones/example.com.", bytes.NewReader(updateBody))
	putReq.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, putReq)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/zones/example.com.", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/zones/example.com.", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
