package server

import (
	"encoding/json"
	"net/http"

	"github.com/hearstlab/storyshare/internal/indexer"
	"github.com/hearstlab/storyshare/internal/pipeline"
)

// handleIndexerCallback receives a state-change notification from the
// analysis service. The service passes the video id and state as query
// parameters on the callback URL we registered at upload time.
func (s *Server) handleIndexerCallback(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	state := r.URL.Query().Get("state")
	if id == "" || state == "" {
		s.errorResponse(w, http.StatusBadRequest, "id and state query parameters are required")
		return
	}

	cb := indexer.Callback{
		VideoID: id,
		State:   indexer.ProcessingState(state),
	}

	if err := s.pipeline.HandleCallback(r.Context(), cb); err != nil {
		s.log.Error().Err(err).Str("video_id", id).Msg("callback handling failed")
		s.errorResponse(w, http.StatusInternalServerError, "callback handling failed")
		return
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleArrival receives an object-arrival event from station storage.
func (s *Server) handleArrival(w http.ResponseWriter, r *http.Request) {
	var event pipeline.ArrivalEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid arrival event")
		return
	}
	if event.Name == "" || event.URI == "" {
		s.errorResponse(w, http.StatusBadRequest, "name and uri are required")
		return
	}

	if err := s.pipeline.HandleArrival(r.Context(), event); err != nil {
		s.log.Error().Err(err).Str("video", event.Name).Msg("arrival handling failed")
		s.errorResponse(w, http.StatusInternalServerError, "arrival handling failed")
		return
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
