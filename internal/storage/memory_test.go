package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitd/internal/models"
)

// storageTest exercises the full Storage contract against one backend.
// Shared by the memory, JSON, and SQLite tests.
func storageTest(t *testing.T, store Storage) {
	ctx := context.Background()

	t.Run("route limit round trip", func(t *testing.T) {
		limit := &models.RouteLimit{
			RouteType: models.RouteStrict, MaxRequests: 10, WindowMinutes: 1, Enabled: true,
		}
		require.NoError(t, store.SaveRouteLimit(ctx, limit))

		got, err := store.GetRouteLimit(ctx, models.RouteStrict)
		require.NoError(t, err)
		assert.Equal(t, limit, got)

		// Update in place.
		limit.MaxRequests = 25
		require.NoError(t, store.SaveRouteLimit(ctx, limit))
		got, err = store.GetRouteLimit(ctx, models.RouteStrict)
		require.NoError(t, err)
		assert.Equal(t, 25, got.MaxRequests)
	})

	t.Run("get missing route limit", func(t *testing.T) {
		_, err := store.GetRouteLimit(ctx, models.RouteExempt)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete route limit", func(t *testing.T) {
		limit := &models.RouteLimit{
			RouteType: models.RouteAdmin, MaxRequests: 20, WindowMinutes: 1, Enabled: true,
		}
		require.NoError(t, store.SaveRouteLimit(ctx, limit))
		require.NoError(t, store.DeleteRouteLimit(ctx, models.RouteAdmin))

		_, err := store.GetRouteLimit(ctx, models.RouteAdmin)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.DeleteRouteLimit(ctx, models.RouteAdmin), ErrNotFound)
	})

	t.Run("platform settings replace everything", func(t *testing.T) {
		settings := &models.PlatformSettings{
			RateLimitingEnabled: false,
			RateLimitConfigurations: []models.RouteLimit{
				{RouteType: models.RouteStandard, MaxRequests: 100, WindowMinutes: 1, Enabled: true},
				{RouteType: models.RouteAuth, MaxRequests: 20, WindowMinutes: 1, Enabled: true},
			},
		}
		require.NoError(t, store.SavePlatformSettings(ctx, settings))

		got, err := store.PlatformSettings(ctx)
		require.NoError(t, err)
		assert.False(t, got.RateLimitingEnabled)
		assert.Len(t, got.RateLimitConfigurations, 2)

		// The earlier strict limit was replaced away.
		_, err = store.GetRouteLimit(ctx, models.RouteStrict)
		assert.ErrorIs(t, err, ErrNotFound)

		limits, err := store.RouteLimits(ctx)
		require.NoError(t, err)
		assert.Len(t, limits, 2)
	})

	t.Run("warnings newest first with limit", func(t *testing.T) {
		base := time.Now().UTC().Add(-time.Hour)
		for i := 0; i < 5; i++ {
			w := &models.Warning{
				ID:           fmt.Sprintf("warn-%d", i),
				ClientID:     "203.0.113.9:agent",
				Pathname:     "/api/orders",
				RequestCount: 101 + i,
				MaxRequests:  100,
				Blocked:      true,
				CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			}
			require.NoError(t, store.InsertWarning(ctx, w))
		}

		got, err := store.Warnings(ctx, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "warn-4", got[0].ID)
		assert.Equal(t, "warn-3", got[1].ID)
		assert.Equal(t, "warn-2", got[2].ID)
	})

	t.Run("prune warnings", func(t *testing.T) {
		cutoff := time.Now().UTC().Add(-time.Hour).Add(2*time.Minute + 30*time.Second)
		deleted, err := store.DeleteWarningsBefore(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		got, err := store.Warnings(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestMemoryStorage(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: "memory"})
	require.NoError(t, err)
	defer store.Close()

	storageTest(t, store)
}

func TestMemoryStorage_InsertWarningFillsDefaults(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: "memory"})
	require.NoError(t, err)
	defer store.Close()

	w := &models.Warning{ClientID: "c", Pathname: "/api/orders"}
	require.NoError(t, store.InsertWarning(context.Background(), w))

	got, err := store.Warnings(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestMemoryStorage_CopyOnReturn(t *testing.T) {
	store, err := NewMemoryStorage(Config{Type: "memory"})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	limit := &models.RouteLimit{
		RouteType: models.RouteStandard, MaxRequests: 100, WindowMinutes: 1, Enabled: true,
	}
	require.NoError(t, store.SaveRouteLimit(ctx, limit))

	got, err := store.GetRouteLimit(ctx, models.RouteStandard)
	require.NoError(t, err)
	got.MaxRequests = 1

	again, err := store.GetRouteLimit(ctx, models.RouteStandard)
	require.NoError(t, err)
	assert.Equal(t, 100, again.MaxRequests, "mutating a returned value must not change stored state")
}
