package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "token-1", "https://pipeline.example.org/callbacks/indexer", zerolog.Nop())
}

func TestUpload(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/videos", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "token-1", q.Get("accessToken"))
		assert.Equal(t, "Storm-PKG.mp4", q.Get("name"))
		assert.Equal(t, "Private", q.Get("privacy"))
		assert.Equal(t, "http://wesh.example.org/proxy/Storm-PKG.mp4", q.Get("videoUrl"))
		assert.Equal(t, "https://pipeline.example.org/callbacks/indexer", q.Get("callbackUrl"))

		_ = json.NewEncoder(w).Encode(Video{ID: "vid-42", State: "Uploaded"})
	}))

	id, err := c.Upload(context.Background(), "Storm-PKG.mp4", "http://wesh.example.org/proxy/Storm-PKG.mp4")
	require.NoError(t, err)
	assert.Equal(t, "vid-42", id)
}

func TestUpload_UpstreamError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.Upload(context.Background(), "x.mp4", "http://s/x.mp4")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadGateway, upErr.StatusCode)
}

func TestUpload_MissingID(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Video{State: "Uploaded"})
	}))

	_, err := c.Upload(context.Background(), "x.mp4", "http://s/x.mp4")
	assert.Error(t, err)
}

func TestGetIndex(t *testing.T) {
	doc := `{"videos":[{"insights":{"topics":[{"name":"Weather"}]}}]}`
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/videos/vid-42/index", r.URL.Path)
		assert.Equal(t, "English", r.URL.Query().Get("language"))
		_, _ = w.Write([]byte(doc))
	}))

	got, err := c.GetIndex(context.Background(), "vid-42")
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(got))
}

func TestGetIndex_UpstreamError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.GetIndex(context.Background(), "vid-missing")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
}

func TestProcessingStateTerminal(t *testing.T) {
	assert.False(t, StateUploaded.Terminal())
	assert.False(t, StateProcessing.Terminal())
	assert.True(t, StateProcessed.Terminal())
	assert.True(t, StateFailed.Terminal())
}
