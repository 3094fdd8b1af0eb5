package simbus

import (
	"sync"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
)

// manualScheduler records armed timers; the bus fires them on request.
type manualScheduler struct {
	mu    sync.Mutex
	armed map[gear.TimerID]bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{armed: make(map[gear.TimerID]bool)}
}

func (s *manualScheduler) Arm(id gear.TimerID) {
	s.mu.Lock()
	s.armed[id] = true
	s.mu.Unlock()
}

func (s *manualScheduler) Cancel(id gear.TimerID) {
	s.mu.Lock()
	delete(s.armed, id)
	s.mu.Unlock()
}

// take disarms id and reports whether it was armed.
func (s *manualScheduler) take(id gear.TimerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	armed := s.armed[id]
	delete(s.armed, id)
	return armed
}
