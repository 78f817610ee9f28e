package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoHClientQueryPostsMessageAndReturnsBody(t *testing.T) {
	want := []byte{0, 1, 0x81, 0x80, 0, 1, 0, 1, 0, 0, 0, 0}
	var gotContentType, gotHost string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotHost = r.Host
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", dnsMessageContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(want)
	}))
	defer srv.Close()

	c := NewDoHClient()
	query := []byte{0, 1, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0}
	got, err := c.Query(context.Background(), srv.URL, "doh.example.com", query)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, dnsMessageContentType, gotContentType)
	assert.Equal(t, "doh.example.com", gotHost)
	assert.Equal(t, query, gotBody)
}

func TestDoHClientQueryErrorsOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewDoHClient()
	_, err := c.Query(context.Background(), srv.URL, "", []byte{0, 1})
	require.Error(t, err)
}
