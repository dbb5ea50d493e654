package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearstlab/storyshare/internal/indexer"
	"github.com/hearstlab/storyshare/internal/pipeline"
)

type fakePipeline struct {
	arrivals  []pipeline.ArrivalEvent
	callbacks []indexer.Callback
	err       error
}

func (f *fakePipeline) HandleArrival(_ context.Context, event pipeline.ArrivalEvent) error {
	f.arrivals = append(f.arrivals, event)
	return f.err
}

func (f *fakePipeline) HandleCallback(_ context.Context, cb indexer.Callback) error {
	f.callbacks = append(f.callbacks, cb)
	return f.err
}

type fakeProbe struct {
	err error
}

func (f *fakeProbe) Login(context.Context) error { return f.err }

func newTestServer(p *fakePipeline, probe *fakeProbe) *Server {
	if probe == nil {
		probe = &fakeProbe{}
	}
	return New(0, p, probe, zerolog.Nop())
}

func TestHandleIndexerCallback(t *testing.T) {
	p := &fakePipeline{}
	srv := newTestServer(p, nil)

	req := httptest.NewRequest(http.MethodPost, "/callbacks/indexer?id=vid-42&state=Processed", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, p.callbacks, 1)
	assert.Equal(t, "vid-42", p.callbacks[0].VideoID)
	assert.Equal(t, indexer.StateProcessed, p.callbacks[0].State)
}

func TestHandleIndexerCallback_MissingParams(t *testing.T) {
	p := &fakePipeline{}
	srv := newTestServer(p, nil)

	for _, target := range []string{
		"/callbacks/indexer",
		"/callbacks/indexer?id=vid-42",
		"/callbacks/indexer?state=Processed",
	} {
		req := httptest.NewRequest(http.MethodPost, target, nil)
		rec := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Empty(t, p.callbacks)
}

func TestHandleIndexerCallback_PipelineError(t *testing.T) {
	p := &fakePipeline{err: errors.New("boom")}
	srv := newTestServer(p, nil)

	req := httptest.NewRequest(http.MethodPost, "/callbacks/indexer?id=vid-42&state=Failed", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleArrival(t *testing.T) {
	p := &fakePipeline{}
	srv := newTestServer(p, nil)

	body, _ := json.Marshal(pipeline.ArrivalEvent{
		Name: "Storm-PKG.mp4",
		URI:  "http://wesh.example.org/proxy/Storm-PKG.mp4",
	})
	req := httptest.NewRequest(http.MethodPost, "/arrivals", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, p.arrivals, 1)
	assert.Equal(t, "Storm-PKG.mp4", p.arrivals[0].Name)
}

func TestHandleArrival_BadBody(t *testing.T) {
	p := &fakePipeline{}
	srv := newTestServer(p, nil)

	for _, body := range []string{"not json", `{"name": "x.mp4"}`, `{"uri": "http://s/x.mp4"}`} {
		req := httptest.NewRequest(http.MethodPost, "/arrivals", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, p.arrivals)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&fakePipeline{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestHandleEnpsProbe(t *testing.T) {
	srv := newTestServer(&fakePipeline{}, &fakeProbe{})

	req := httptest.NewRequest(http.MethodGet, "/debug/enps", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleEnpsProbe_LoginFailure(t *testing.T) {
	srv := newTestServer(&fakePipeline{}, &fakeProbe{err: errors.New("unauthorized")})

	req := httptest.NewRequest(http.MethodGet, "/debug/enps", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
