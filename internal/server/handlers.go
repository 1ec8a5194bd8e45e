package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vidframe/internal/httputil"
	"vidframe/internal/media"
	"vidframe/internal/metrics"
	"vidframe/internal/playback"
	"vidframe/internal/sandbox"
)

const maxRequestBody = 64 << 10

type sessionResponse struct {
	ID string `json:"id"`
	playback.Snapshot
	Blocked int64 `json:"blocked"`
}

func (s *Server) respond(w http.ResponseWriter, code int, sess *session) {
	writeJSON(w, code, sessionResponse{
		ID:       sess.id,
		Snapshot: sess.machine.Snapshot(),
		Blocked:  sess.blocked.Load(),
	})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding body: %v", media.ErrInvalidRef, err)
	}
	return nil
}

func (s *Server) handleScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = io.WriteString(w, sandbox.Script())
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Registry.List())
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := media.ParseKind(q.Get("kind"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ref := media.MovieRef(q.Get("id"))
	if kind == media.Series {
		ref = media.EpisodeRef(q.Get("id"), q.Get("season"), q.Get("episode"))
	}

	id := q.Get("provider")
	label := id
	if !s.opts.Registry.Has(id) {
		label = "unknown"
	}
	url, err := s.opts.Registry.Resolve(ref, id)
	switch {
	case err != nil:
		metrics.ResolveOutcome(label, "incomplete")
		s.writeError(w, err)
		return
	case url == "":
		metrics.ResolveOutcome(label, "unknown_provider")
	default:
		metrics.ResolveOutcome(label, "ok")
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

type openRequest struct {
	Kind  *media.Kind `json:"kind"`
	ID    string      `json:"id"`
	Title string      `json:"title"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.Kind == nil {
		writeBadRequest(w, fmt.Errorf("%w: kind is required", media.ErrInvalidRef))
		return
	}
	kind := *req.Kind
	if err := httputil.ValidateID(req.ID); err != nil {
		writeBadRequest(w, fmt.Errorf("%w: %v", media.ErrInvalidRef, err))
		return
	}
	if kind == media.Series && s.opts.Catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no metadata source configured"})
		return
	}

	sess, err := s.open(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	title := httputil.SanitizeText(req.Title)
	if title == "" {
		title = s.lookupTitle(r.Context(), kind, req.ID)
	}
	sess.machine.SetTitle(title)

	if kind == media.Series {
		err = sess.machine.OpenSeries(r.Context(), req.ID)
	} else {
		err = sess.machine.OpenMovie(r.Context(), req.ID)
	}
	if err != nil {
		s.remove(sess.id)
		s.writeError(w, err)
		return
	}

	s.logger.Info().Str("session", sess.id).Str("kind", kind.String()).Str("id", req.ID).Msg("session opened")
	s.respond(w, http.StatusCreated, sess)
}

// lookupTitle is best effort; history rows fall back to kind and id.
func (s *Server) lookupTitle(ctx context.Context, kind media.Kind, id string) string {
	if s.opts.Titles == nil {
		return ""
	}
	title, err := s.opts.Titles.Title(ctx, kind, id)
	if err != nil {
		s.logger.Debug().Err(err).Str("id", id).Msg("title lookup failed")
		return ""
	}
	return title
}

func (s *Server) withSession(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.withSession(w, r); ok {
		s.respond(w, http.StatusOK, sess)
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if !s.remove(chi.URLParam(r, "id")) {
		writeNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) transition(fn func(context.Context, *playback.Machine) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.withSession(w, r)
		if !ok {
			return
		}
		if err := fn(r.Context(), sess.machine); err != nil {
			s.writeError(w, err)
			return
		}
		s.respond(w, http.StatusOK, sess)
	}
}

func (s *Server) handleSeason(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Season string `json:"season"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	s.transition(func(ctx context.Context, m *playback.Machine) error {
		return m.ChangeSeason(ctx, req.Season)
	})(w, r)
}

func (s *Server) handleEpisode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Episode string `json:"episode"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	s.transition(func(ctx context.Context, m *playback.Machine) error {
		return m.ChangeEpisode(ctx, req.Episode)
	})(w, r)
}

func (s *Server) handleProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	s.transition(func(ctx context.Context, m *playback.Machine) error {
		return m.ChangeProvider(ctx, req.Provider)
	})(w, r)
}
