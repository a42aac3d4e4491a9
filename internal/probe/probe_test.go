package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbeOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	res := NewHTTP(srv.Client()).Probe(context.Background(), srv.URL)
	assert.True(t, res.OK)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestProbeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	res := NewHTTP(srv.Client()).Probe(context.Background(), srv.URL)
	assert.False(t, res.OK)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, res.Reason, "404")
}

func TestProbeNetworkFailureIsResultNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // connection refused from here on

	res := NewHTTP(nil).Probe(context.Background(), srv.URL)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Reason)
}
