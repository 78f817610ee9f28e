package api_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/corvid/internal/api"
	"github.com/jroosing/corvid/internal/config"
	"github.com/jroosing/corvid/internal/store"
)

func TestNewServerRegistersHealthAndStatsRoutes(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "zones.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{API: config.APIConfig{Host: "127.0.0.1", Port: 0}}
	s := api.New(cfg, nil, api.Deps{Store: st})

	for _, path := range []string{"/healthz", "/statz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.Engine().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestAPIKeyProtectsZonesEndpointOnly(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "zones.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{API: config.APIConfig{Host: "127.0.0.1", Port: 0, APIKey: "secret"}}
	s := api.New(cfg, nil, api.Deps{Store: st})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/zones", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
