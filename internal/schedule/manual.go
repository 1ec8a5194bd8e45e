package schedule

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by Advance. Callbacks run on the goroutine
// that calls Advance. It counts registrations and cancellations so tests
// can check that teardown matched setup one to one.
type Manual struct {
	mu        sync.Mutex
	now       time.Duration
	seq       int
	tasks     []*manualTask
	scheduled int
	cancelled int
}

type manualTask struct {
	m        *Manual
	seq      int
	due      time.Duration
	interval time.Duration // zero for one-shot
	fn       func()
	live     bool
}

// NewManual returns a Manual at time zero.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) add(d, interval time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.scheduled++
	t := &manualTask{m: m, seq: m.seq, due: m.now + d, interval: interval, fn: fn, live: true}
	m.tasks = append(m.tasks, t)
	return t
}

// After implements Scheduler.
func (m *Manual) After(d time.Duration, fn func()) Task { return m.add(d, 0, fn) }

// Every implements Scheduler.
func (m *Manual) Every(d time.Duration, fn func()) Task { return m.add(d, d, fn) }

func (t *manualTask) Cancel() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if !t.live {
		return false
	}
	t.live = false
	t.m.cancelled++
	return true
}

// Advance moves time forward by d, running every callback that falls due,
// in due order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.due
		if next.interval > 0 {
			next.due += next.interval
		} else {
			next.live = false
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}

func (m *Manual) nextDue(target time.Duration) *manualTask {
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if t.live {
			live = append(live, t)
		}
	}
	m.tasks = live
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].due == live[j].due {
			return live[i].seq < live[j].seq
		}
		return live[i].due < live[j].due
	})
	if len(live) == 0 || live[0].due > target {
		return nil
	}
	return live[0]
}

// Pending returns the number of live tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.live {
			n++
		}
	}
	return n
}

// Scheduled returns how many tasks were ever created.
func (m *Manual) Scheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduled
}

// Cancelled returns how many live tasks were cancelled.
func (m *Manual) Cancelled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}
