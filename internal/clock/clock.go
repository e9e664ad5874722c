// Package clock abstracts time so services can be tested with a fixed or
// stepped clock and so message timestamps can be made strictly increasing.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real returns a Clock backed by time.Now, truncated to microseconds so
// values survive a round trip through Postgres and SQLite unchanged.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// Monotonic wraps a Clock and never hands out the same instant twice.
// If the underlying clock stalls or steps backwards, the previous value
// plus one microsecond is returned instead.
type Monotonic struct {
	mu   sync.Mutex
	base Clock
	last time.Time
}

// NewMonotonic wraps base. A nil base uses Real.
func NewMonotonic(base Clock) *Monotonic {
	if base == nil {
		base = Real()
	}
	return &Monotonic{base: base}
}

// Now returns a timestamp strictly after every value previously returned.
func (m *Monotonic) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.base.Now()
	if !now.After(m.last) {
		now = m.last.Add(time.Microsecond)
	}
	m.last = now
	return now
}

// Fixed is a Clock that only moves when told to.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a Fixed clock set to t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set moves the clock to t, which may be in the past.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}
