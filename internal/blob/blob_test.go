package blob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStore_Delete(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	s := NewHTTPStore(zerolog.Nop())
	require.NoError(t, s.Delete(context.Background(), srv.URL+"/proxy/Storm-PKG.mp4"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/proxy/Storm-PKG.mp4", path)
}

func TestHTTPStore_DeleteMissingObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	s := NewHTTPStore(zerolog.Nop())
	assert.NoError(t, s.Delete(context.Background(), srv.URL+"/gone.mp4"))
}

func TestHTTPStore_DeleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	s := NewHTTPStore(zerolog.Nop())
	assert.Error(t, s.Delete(context.Background(), srv.URL+"/x.mp4"))
}

func TestNoopStore(t *testing.T) {
	assert.NoError(t, NoopStore{}.Delete(context.Background(), "anything"))
}
