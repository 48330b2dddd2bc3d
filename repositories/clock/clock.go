// Package clock gives the usecases a replaceable source of time. Times are in UTC, the dashboard
// trend buckets runs by UTC day.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type utcClock struct{}

func (utcClock) Now() time.Time {
	return time.Now().UTC()
}

func New() Clock {
	return utcClock{}
}

// Mock is a fixed clock for tests, moved forward explicitly.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMock(now time.Time) *Mock {
	return &Mock{now: now.UTC()}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
