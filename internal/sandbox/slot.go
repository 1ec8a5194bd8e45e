package sandbox

import "sync"

// Slot owns the session of one player position. Mounting a new frame
// closes the previous session first, so two sessions never overlap.
type Slot struct {
	cfg Config

	mu      sync.Mutex
	current *Session
}

// NewSlot returns an empty slot.
func NewSlot(cfg Config) *Slot {
	return &Slot{cfg: cfg}
}

// Mount attaches a new session to frame, closing the current one.
func (s *Slot) Mount(frame Frame) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
	s.current = Start(s.cfg, frame)
	return s.current
}

// Unmount closes the current session, if any.
func (s *Slot) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
}

// Current returns the live session or nil.
func (s *Slot) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// BlockedCount returns the live session's count, 0 when empty.
func (s *Slot) BlockedCount() int64 {
	if cur := s.Current(); cur != nil {
		return cur.BlockedCount()
	}
	return 0
}
