package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"vidframe/internal/media"
	"vidframe/internal/playback"
	"vidframe/internal/provider"
)

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeNotFound writes a 404 Not Found response
func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}

// writeBadRequest writes a 400 with the error text
func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// writeError maps domain errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var me *playback.MetadataError
	switch {
	case errors.As(err, &me):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Retryable: me.Retryable()})
	case errors.Is(err, media.ErrInvalidRef),
		errors.Is(err, provider.ErrIncompleteRef),
		errors.Is(err, playback.ErrNotSeries),
		errors.Is(err, playback.ErrUnknownEpisode):
		writeBadRequest(w, err)
	case errors.Is(err, playback.ErrNotReady),
		errors.Is(err, playback.ErrSessionOpen),
		errors.Is(err, playback.ErrNoAdjacentEpisode),
		errors.Is(err, playback.ErrClosed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, errTooManySessions):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
