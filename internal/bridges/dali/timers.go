package dali

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dali/internal/gear"
)

// timerSet runs one time.AfterFunc per gear.TimerID and implements
// gear.Scheduler. Expiries are posted through fire with the generation of
// the arming, so a timer that fired just before being re-armed or cancelled
// can be recognised as stale.
type timerSet struct {
	mu     sync.Mutex
	timers map[gear.TimerID]*time.Timer
	gens   map[gear.TimerID]uint64
	fire   func(id gear.TimerID, gen uint64)

	// duration is overridable for tests.
	duration func(id gear.TimerID) time.Duration
}

func newTimerSet(fire func(id gear.TimerID, gen uint64)) *timerSet {
	return &timerSet{
		timers:   make(map[gear.TimerID]*time.Timer),
		gens:     make(map[gear.TimerID]uint64),
		fire:     fire,
		duration: gear.TimerID.Duration,
	}
}

// Arm (re)starts the timer.
func (s *timerSet) Arm(id gear.TimerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.gens[id]++
	gen := s.gens[id]
	s.timers[id] = time.AfterFunc(s.duration(id), func() { s.fire(id, gen) })
}

// Cancel stops the timer. A pending expiry becomes stale.
func (s *timerSet) Cancel(id gear.TimerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.gens[id]++
}

// current reports whether an expiry of generation gen is still live, and
// retires the timer if so.
func (s *timerSet) current(id gear.TimerID, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gens[id] != gen {
		return false
	}
	delete(s.timers, id)
	return true
}

// pending reports whether a timer is armed.
func (s *timerSet) pending(id gear.TimerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

// stopAll cancels every timer.
func (s *timerSet) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
		s.gens[id]++
	}
}
