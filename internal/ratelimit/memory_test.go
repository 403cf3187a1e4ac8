package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounters_Incr(t *testing.T) {
	m := NewMemoryCounters(5 * time.Minute)
	defer m.Close()

	count, resetAt, err := m.Incr(context.Background(), "client-a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, resetAt.After(time.Now()))

	count, _, err = m.Incr(context.Background(), "client-a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryCounters_IndependentKeys(t *testing.T) {
	m := NewMemoryCounters(5 * time.Minute)
	defer m.Close()

	for i := 0; i < 5; i++ {
		m.Incr(context.Background(), "client-a", time.Minute)
	}
	count, _, err := m.Incr(context.Background(), "client-b", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "keys must not share counters")
}

func TestMemoryCounters_WindowReset(t *testing.T) {
	m := NewMemoryCounters(5 * time.Minute)
	defer m.Close()

	window := 30 * time.Millisecond
	count, firstReset, err := m.Incr(context.Background(), "client-a", window)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	m.Incr(context.Background(), "client-a", window)

	time.Sleep(50 * time.Millisecond)

	count, secondReset, err := m.Incr(context.Background(), "client-a", window)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "expired window should restart at 1")
	assert.True(t, secondReset.After(firstReset))
}

func TestMemoryCounters_StableResetWithinWindow(t *testing.T) {
	m := NewMemoryCounters(5 * time.Minute)
	defer m.Close()

	_, first, err := m.Incr(context.Background(), "client-a", time.Minute)
	require.NoError(t, err)
	_, second, err := m.Incr(context.Background(), "client-a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first, second, "reset time is fixed for the window")
}

func TestMemoryCounters_Sweep(t *testing.T) {
	m := NewMemoryCounters(20 * time.Millisecond)
	defer m.Close()

	m.Incr(context.Background(), "ephemeral", 10*time.Millisecond)
	require.Equal(t, 1, m.Len())

	assert.Eventually(t, func() bool {
		return m.Len() == 0
	}, time.Second, 10*time.Millisecond, "expired counter should be swept")
}

func TestMemoryCounters_ConcurrentAccess(t *testing.T) {
	m := NewMemoryCounters(5 * time.Minute)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", id%5)
			for j := 0; j < 20; j++ {
				m.Incr(context.Background(), key, time.Minute)
			}
		}(i)
	}
	wg.Wait()

	// 5 distinct keys, 200 increments each.
	assert.Equal(t, 5, m.Len())
	count, _, err := m.Incr(context.Background(), "client-0", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 201, count)
}

func TestMemoryCounters_Close(t *testing.T) {
	m := NewMemoryCounters(50 * time.Millisecond)
	m.Close()
	// Should not panic on double close.
	m.Close()
}
