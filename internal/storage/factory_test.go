package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitd/internal/models"
)

func TestFactory_CreateMemory(t *testing.T) {
	store, err := NewFactory().Create(models.StorageConfig{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &MemoryStorage{}, store)
}

func TestFactory_CreateJSON(t *testing.T) {
	store, err := NewFactory().Create(models.StorageConfig{
		Type: models.StorageTypeJSON,
		Path: filepath.Join(t.TempDir(), "limits.json"),
	})
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &JSONStorage{}, store)
}

func TestFactory_CreateSQLite(t *testing.T) {
	store, err := NewFactory().Create(models.StorageConfig{
		Type:     models.StorageTypeSQLite,
		Database: models.DatabaseConfig{DSN: filepath.Join(t.TempDir(), "limitd.db")},
	})
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &SQLiteStorage{}, store)
}

func TestFactory_UnsupportedType(t *testing.T) {
	_, err := NewFactory().Create(models.StorageConfig{Type: "cassandra"})
	assert.Error(t, err)
}

func TestFactory_SupportedProviders(t *testing.T) {
	providers := NewFactory().SupportedProviders()
	assert.ElementsMatch(t, []string{"memory", "json", "postgres", "sqlite"}, providers)
}
