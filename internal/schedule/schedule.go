// Package schedule is the one place timers are created. Every timer is a
// Task that can be cancelled, and Scope ties a set of tasks and listener
// removals to a single lifetime so teardown cancels exactly what was set up.
package schedule

import (
	"sync"
	"time"
)

// Task is a pending or repeating callback.
type Task interface {
	// Cancel stops the task. It reports whether the task was still live.
	// After Cancel returns the callback does not start again.
	Cancel() bool
}

// Scheduler creates tasks.
type Scheduler interface {
	After(d time.Duration, fn func()) Task
	Every(d time.Duration, fn func()) Task
}

// Clock is the wall-clock Scheduler.
type Clock struct{}

// After runs fn once after d.
func (Clock) After(d time.Duration, fn func()) Task {
	t := &timerTask{}
	t.timer = time.AfterFunc(d, func() {
		if t.claim() {
			fn()
		}
	})
	return t
}

// Every runs fn every d until cancelled.
func (Clock) Every(d time.Duration, fn func()) Task {
	t := &tickerTask{done: make(chan struct{})}
	go t.loop(d, fn)
	return t
}

type timerTask struct {
	mu    sync.Mutex
	timer *time.Timer
	done  bool
}

// claim marks the task as fired; false if it was cancelled first.
func (t *timerTask) claim() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (t *timerTask) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.timer.Stop()
	return true
}

type tickerTask struct {
	mu      sync.Mutex
	stopped bool
	once    sync.Once
	done    chan struct{}
}

func (t *tickerTask) loop(d time.Duration, fn func()) {
	tk := time.NewTicker(d)
	defer tk.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-tk.C:
			if t.isStopped() {
				return
			}
			fn()
		}
	}
}

func (t *tickerTask) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *tickerTask) Cancel() bool {
	t.mu.Lock()
	live := !t.stopped
	t.stopped = true
	t.mu.Unlock()
	t.once.Do(func() { close(t.done) })
	return live
}

// Latest holds at most one pending task. Scheduling a new one cancels the
// previous, so rapid repeated calls never stack.
type Latest struct {
	mu   sync.Mutex
	task Task
}

// Replace cancels the pending task, if any, and schedules fn after d.
func (l *Latest) Replace(s Scheduler, d time.Duration, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.task != nil {
		l.task.Cancel()
	}
	l.task = s.After(d, fn)
}

// Cancel cancels the pending task. It reports whether one was live.
func (l *Latest) Cancel() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.task == nil {
		return false
	}
	live := l.task.Cancel()
	l.task = nil
	return live
}

// Scope collects tasks and cleanup functions acquired for one lifetime.
// Close releases all of them once, in reverse order of acquisition.
type Scope struct {
	mu       sync.Mutex
	closed   bool
	releases []func()
}

// Every starts a repeating task owned by the scope. On a closed scope it
// does nothing and returns nil.
func (s *Scope) Every(sched Scheduler, d time.Duration, fn func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	t := sched.Every(d, fn)
	s.releases = append(s.releases, func() { t.Cancel() })
	return t
}

// Defer registers a release function. On a closed scope it runs immediately.
func (s *Scope) Defer(release func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		release()
		return
	}
	s.releases = append(s.releases, release)
	s.mu.Unlock()
}

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases everything. Calling it again is a no-op.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}
