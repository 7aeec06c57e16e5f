// Package clock abstracts wall time and pacing delays so that conversation
// timing can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	// Sleep blocks for d. It is not interruptible: callers observe stop
	// requests only after the delay completes.
	Sleep(d time.Duration)
}

type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// Manual is a Clock whose time only moves when Sleep or Advance is called.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

func (m *Manual) Sleep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slept = append(m.slept, d)
	if d > 0 {
		m.now = m.now.Add(d)
	}
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = m.now.Add(d)
}

// Slept returns every delay requested so far, in order.
func (m *Manual) Slept() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]time.Duration(nil), m.slept...)
}
