package sandbox

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vidframe/internal/log"
	"vidframe/internal/metrics"
	"vidframe/internal/schedule"
)

// Config is shared by every session a Slot starts.
type Config struct {
	Host      Window
	Scheduler schedule.Scheduler
	Interval  time.Duration
	// Script defaults to the embedded blocker script.
	Script string
	// OnBlocked receives the running blocked total of the live session.
	OnBlocked func(total int64)
}

func (c Config) withDefaults() Config {
	if c.Scheduler == nil {
		c.Scheduler = schedule.Clock{}
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Script == "" {
		c.Script = Script()
	}
	return c
}

// Session is the set of listeners and the injection loop attached to one
// mounted frame. Everything it registers is released by Close.
type Session struct {
	cfg    Config
	frame  Frame
	guard  *Guard
	scope  schedule.Scope
	logger zerolog.Logger

	mu       sync.Mutex
	injected int
	exposed  int
}

// Start attaches a session to frame: the blocker is injected on every
// frame load and re-injected every interval, and the host's beforeunload
// counts as a blocked attempt. Frames implementing Exposer get the guard
// on start and again on every load. Registration failures are logged and
// leave the session running with whatever did register.
func Start(cfg Config, frame Frame) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:    cfg,
		frame:  frame,
		logger: log.WithComponent("sandbox"),
	}
	s.guard = NewGuard(cfg.Host, cfg.OnBlocked)

	if cfg.Host != nil {
		s.listen(cfg.Host, "beforeunload", s.beforeUnload)
	}
	s.listen(frame, "load", func(Event) {
		s.expose()
		s.inject()
	})
	s.scope.Every(cfg.Scheduler, cfg.Interval, s.inject)
	s.expose()

	metrics.SandboxSessions.Inc()
	s.scope.Defer(func() { metrics.SandboxSessions.Dec() })
	return s
}

// Guard returns the capability-scoped view of the host window.
func (s *Session) Guard() *Guard {
	return s.guard
}

// BlockedCount returns the blocked attempts seen by this session.
func (s *Session) BlockedCount() int64 {
	return s.guard.BlockedCount()
}

// Active reports whether the session has not been closed.
func (s *Session) Active() bool {
	return !s.scope.Closed()
}

// Injected returns how many injections succeeded.
func (s *Session) Injected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.injected
}

// Exposed returns how many times the guard was handed to the frame.
func (s *Session) Exposed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exposed
}

// Close removes every listener and cancels the injection loop.
func (s *Session) Close() {
	s.scope.Close()
}

func (s *Session) listen(target EventTarget, event string, fn Listener) {
	err := safely(func() error {
		id, err := target.AddEventListener(event, fn)
		if err != nil {
			return err
		}
		s.scope.Defer(func() {
			if err := safely(func() error { return target.RemoveEventListener(event, id) }); err != nil {
				s.logger.Debug().Err(err).Str("event", event).Msg("removing listener failed")
			}
		})
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("event", event).Msg("adding listener failed")
	}
}

func (s *Session) beforeUnload(ev Event) {
	if !s.Active() {
		return
	}
	if ev != nil {
		_ = safely(func() error { ev.PreventDefault(); return nil })
	}
	s.guard.Block("beforeunload")
}

// expose hands the guard to the frame content when the frame supports it.
func (s *Session) expose() {
	x, ok := s.frame.(Exposer)
	if !ok || !s.Active() {
		return
	}
	var release func()
	err := safely(func() (err error) {
		release, err = x.Expose(s.guard)
		return err
	})
	if err != nil {
		s.logger.Debug().Err(err).Msg("guard not exposed")
		return
	}
	if release != nil {
		s.scope.Defer(func() {
			if err := safely(func() error { release(); return nil }); err != nil {
				s.logger.Debug().Err(err).Msg("releasing guard failed")
			}
		})
	}
	s.mu.Lock()
	s.exposed++
	s.mu.Unlock()
}

// inject makes one attempt. Cross-origin frames fail here on every tick.
func (s *Session) inject() {
	if !s.Active() {
		return
	}
	err := safely(func() error {
		doc, err := s.frame.Document()
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("frame has no document")
		}
		return doc.InjectScript(s.cfg.Script)
	})
	if err != nil {
		metrics.SandboxInjectTotal.WithLabelValues("skipped").Inc()
		s.logger.Debug().Err(err).Msg("blocker injection skipped")
		return
	}
	s.mu.Lock()
	s.injected++
	s.mu.Unlock()
	metrics.SandboxInjectTotal.WithLabelValues("ok").Inc()
}

// safely runs fn and turns a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()
	return fn()
}
