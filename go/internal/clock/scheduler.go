// Package clock provides a cancellable one-shot scheduler for deadline-driven
// state transitions. Timers are keyed; scheduling a key that already has a
// pending timer replaces it, so at most one callback is ever pending per key.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type pending struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// Scheduler fires one-shot callbacks after a delay. In production it runs on
// clockwork.NewRealClock(); tests drive it with a FakeClock.
type Scheduler struct {
	clock clockwork.Clock

	mu     sync.Mutex
	timers map[string]*pending
	closed bool
}

func NewScheduler(clk clockwork.Clock) *Scheduler {
	return &Scheduler{
		clock:  clk,
		timers: make(map[string]*pending),
	}
}

// Schedule arranges for fn to run after d, replacing any timer already pending
// for key. fn runs on its own goroutine; callers guard against stale fires
// themselves (the scheduler cannot know whether the state a callback closes
// over is still current by the time it runs).
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		log.Warn().Str("key", key).Msg("schedule on stopped scheduler ignored")
		return
	}
	if prev, ok := s.timers[key]; ok {
		stopAndDrainTimer(prev.timer)
		close(prev.cancel)
		log.Debug().Str("key", key).Msg("replaced pending timer")
	}
	p := &pending{
		timer:  s.clock.NewTimer(d),
		cancel: make(chan struct{}),
	}
	s.timers[key] = p
	s.mu.Unlock()

	go func() {
		select {
		case <-p.timer.Chan():
			s.remove(key, p)
			fn()
		case <-p.cancel:
			stopAndDrainTimer(p.timer)
		}
	}()

	log.Debug().Str("key", key).Dur("after", d).Msg("scheduled one-shot timer")
}

// Cancel stops the pending timer for key if one exists. Safe to call when no
// timer is pending and after the timer has fired.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.timers[key]; ok {
		stopAndDrainTimer(p.timer)
		close(p.cancel)
		delete(s.timers, key)
		log.Debug().Str("key", key).Msg("cancelled pending timer")
	}
}

// Stop cancels every pending timer and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.timers {
		stopAndDrainTimer(p.timer)
		close(p.cancel)
		delete(s.timers, key)
	}
	s.closed = true
}

// remove drops the pending entry after a fire, unless a newer timer has
// already taken the key.
func (s *Scheduler) remove(key string, p *pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.timers[key]; ok && cur == p {
		delete(s.timers, key)
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel, per the
// time.Timer.Stop() documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
