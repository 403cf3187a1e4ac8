package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// counter holds one client's fixed-window state.
type counter struct {
	count   int
	resetAt time.Time
}

// MemoryCounters is an in-memory fixed-window counter store. Each client key
// keeps a count and a window reset time; a request after the reset time
// starts a fresh window at count 1. Counters live only for the lifetime of
// the process, and each instance keeps its own table - the effective
// aggregate limit under horizontal scaling is N times the configured limit.
//
// A background goroutine sweeps expired counters every sweep interval, and a
// 1% chance inline sweep on Incr keeps the table from going stale between
// ticks.
type MemoryCounters struct {
	sweepInterval time.Duration

	mu       sync.Mutex
	counters map[string]*counter
	done     chan struct{}
	closed   bool
}

// NewMemoryCounters creates a counter store with the given sweep interval and
// starts its background eviction goroutine.
func NewMemoryCounters(sweepInterval time.Duration) *MemoryCounters {
	m := &MemoryCounters{
		sweepInterval: sweepInterval,
		counters:      make(map[string]*counter),
		done:          make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Incr implements CounterStore. It never fails.
func (m *MemoryCounters) Incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[key]
	if !ok || now.After(c.resetAt) {
		c = &counter{count: 1, resetAt: now.Add(window)}
		m.counters[key] = c
	} else {
		c.count++
	}

	if rand.IntN(100) == 0 {
		m.evictExpired(now)
	}

	return c.count, c.resetAt, nil
}

// Len reports the number of live counters.
func (m *MemoryCounters) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}

// Close stops the background sweep goroutine.
func (m *MemoryCounters) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

func (m *MemoryCounters) sweepLoop() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.mu.Lock()
			m.evictExpired(time.Now())
			m.mu.Unlock()
		}
	}
}

// evictExpired removes counters whose window has passed. Callers must hold mu.
func (m *MemoryCounters) evictExpired(now time.Time) {
	for key, c := range m.counters {
		if now.After(c.resetAt) {
			delete(m.counters, key)
		}
	}
}
