package warnings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitd/internal/models"
	"limitd/internal/storage"
)

func TestHTTPSink_Deliver(t *testing.T) {
	var received models.Warning
	var marker string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/rate-limit-warnings", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		marker = r.Header.Get("X-Internal-Request")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "rate-limit-middleware")
	err := sink.Deliver(context.Background(), testWarning("w1"))
	require.NoError(t, err)

	assert.Equal(t, "rate-limit-middleware", marker)
	assert.Equal(t, "w1", received.ID)
	assert.Equal(t, "203.0.113.9:agent", received.ClientID)
	assert.Equal(t, 101, received.RequestCount)
	assert.True(t, received.Blocked)
}

func TestHTTPSink_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "wrong-marker")
	err := sink.Deliver(context.Background(), testWarning("w1"))
	assert.Error(t, err)
}

func TestHTTPSink_Unreachable(t *testing.T) {
	sink := NewHTTPSink("http://127.0.0.1:1", "rate-limit-middleware")
	err := sink.Deliver(context.Background(), testWarning("w1"))
	assert.Error(t, err)
}

func TestStoreSink_Deliver(t *testing.T) {
	store, err := storage.NewMemoryStorage(storage.Config{Type: "memory"})
	require.NoError(t, err)
	defer store.Close()

	sink := NewStoreSink(store)
	require.NoError(t, sink.Deliver(context.Background(), testWarning("w1")))

	persisted, err := store.Warnings(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "w1", persisted[0].ID)
}
