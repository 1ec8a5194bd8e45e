// Package server exposes providers, resolution, playback sessions and the
// sanitizing embed proxy over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vidframe/internal/httputil"
	"vidframe/internal/log"
	"vidframe/internal/media"
	"vidframe/internal/metrics"
	"vidframe/internal/playback"
	"vidframe/internal/provider"
	"vidframe/internal/schedule"
)

const (
	defaultMaxSessions = 64
	defaultRateLimit   = 600
	defaultIdleTimeout = 30 * time.Minute
)

var errTooManySessions = errors.New("too many open sessions")

// TitleSource looks up display titles for history entries.
type TitleSource interface {
	Title(ctx context.Context, kind media.Kind, id string) (string, error)
}

// Options wires the server. Catalog is required for series sessions.
type Options struct {
	Registry    *provider.Registry
	Catalog     playback.Catalog
	Titles      TitleSource
	Progress    playback.ProgressStore
	Preferences playback.PreferenceStore
	History     playback.HistoryRecorder
	Scheduler   schedule.Scheduler
	ReloadDelay time.Duration
	// HTTPClient fetches provider documents for the embed proxy.
	HTTPClient *http.Client
	// RateLimit is the per-IP request budget per minute on /api.
	RateLimit   int
	MaxSessions int
	// IdleTimeout reclaims sessions nobody has touched for one to two
	// timeouts, since a closed tab never sends DELETE.
	IdleTimeout time.Duration
}

type session struct {
	id      string
	machine *playback.Machine
	blocked atomic.Int64
	touched atomic.Bool
}

// Server holds the open playback sessions.
type Server struct {
	opts   Options
	router chi.Router
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	reaper   schedule.Scope
}

// New builds a server and its routes.
func New(opts Options) *Server {
	if opts.Registry == nil {
		opts.Registry = provider.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httputil.NewClient()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = defaultMaxSessions
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	s := &Server{
		opts:     opts,
		logger:   log.WithComponent("server"),
		sessions: make(map[string]*session),
	}
	s.router = s.routes()

	sched := opts.Scheduler
	if sched == nil {
		sched = schedule.Clock{}
	}
	s.reaper.Every(sched, opts.IdleTimeout, s.reap)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/sandbox.js", s.handleScript)
	r.Get("/embed/{id}", s.handleEmbed)

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.Limit(
			s.opts.RateLimit,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limit_exceeded"})
			}),
		))

		r.Get("/providers", s.handleProviders)
		r.Get("/resolve", s.handleResolve)

		r.Post("/sessions", s.handleOpen)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Delete("/", s.handleClose)
			r.Post("/season", s.handleSeason)
			r.Post("/episode", s.handleEpisode)
			r.Post("/provider", s.handleProvider)
			r.Post("/next", s.transition(func(ctx context.Context, m *playback.Machine) error { return m.NextEpisode(ctx) }))
			r.Post("/previous", s.transition(func(ctx context.Context, m *playback.Machine) error { return m.PreviousEpisode(ctx) }))
			r.Post("/submit", s.transition(func(ctx context.Context, m *playback.Machine) error { return m.Submit(ctx) }))
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// open registers a new session with a fresh machine.
func (s *Server) open(ctx context.Context) (*session, error) {
	s.mu.Lock()
	full := len(s.sessions) >= s.opts.MaxSessions
	s.mu.Unlock()
	if full {
		return nil, errTooManySessions
	}

	sess := &session{
		id: uuid.NewString(),
		machine: playback.New(ctx, playback.Options{
			Registry:    s.opts.Registry,
			Catalog:     s.opts.Catalog,
			Progress:    s.opts.Progress,
			Preferences: s.opts.Preferences,
			History:     s.opts.History,
			Scheduler:   s.opts.Scheduler,
			ReloadDelay: s.opts.ReloadDelay,
		}),
	}

	s.mu.Lock()
	if len(s.sessions) >= s.opts.MaxSessions {
		s.mu.Unlock()
		sess.machine.Close()
		return nil, errTooManySessions
	}
	sess.touched.Store(true)
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	return sess, nil
}

func (s *Server) lookup(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.touched.Store(true)
	}
	return sess, ok
}

// reap closes sessions that were not used since the previous tick.
func (s *Server) reap() {
	s.mu.Lock()
	var idle []string
	for id, sess := range s.sessions {
		if !sess.touched.Swap(false) {
			idle = append(idle, id)
		}
	}
	s.mu.Unlock()

	for _, id := range idle {
		if s.remove(id) {
			s.logger.Info().Str("session", id).Msg("idle session closed")
		}
	}
}

func (s *Server) remove(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	sess.machine.Close()
	metrics.ActiveSessions.Dec()
	return true
}

// Close ends every open session, cancelling their reload timers and the
// idle reaper.
func (s *Server) Close() {
	s.reaper.Close()
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.remove(id)
	}
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
