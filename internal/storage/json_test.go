package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitd/internal/models"
)

func TestJSONStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.json")
	store, err := NewJSONStorage(Config{Type: "json", Path: path})
	require.NoError(t, err)
	defer store.Close()

	storageTest(t, store)
}

func TestJSONStorage_RequiresPath(t *testing.T) {
	_, err := NewJSONStorage(Config{Type: "json"})
	assert.Error(t, err)
}

func TestJSONStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "limits.json")

	store, err := NewJSONStorage(Config{Type: "json", Path: path})
	require.NoError(t, err)

	limit := &models.RouteLimit{
		RouteType: models.RouteStandard, MaxRequests: 100, WindowMinutes: 1, Enabled: true,
	}
	require.NoError(t, store.SaveRouteLimit(ctx, limit))
	require.NoError(t, store.InsertWarning(ctx, &models.Warning{
		ID: "w1", ClientID: "c", Pathname: "/api/orders",
	}))
	require.NoError(t, store.Close())

	reopened, err := NewJSONStorage(Config{Type: "json", Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRouteLimit(ctx, models.RouteStandard)
	require.NoError(t, err)
	assert.Equal(t, 100, got.MaxRequests)

	warnings, err := reopened.Warnings(ctx, 0)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "w1", warnings[0].ID)
}

func TestJSONStorage_FreshFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.json")
	store, err := NewJSONStorage(Config{Type: "json", Path: path})
	require.NoError(t, err)
	defer store.Close()

	ps, err := store.PlatformSettings(context.Background())
	require.NoError(t, err)
	assert.True(t, ps.RateLimitingEnabled)
	assert.Empty(t, ps.RateLimitConfigurations)
}
