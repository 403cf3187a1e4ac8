package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitd/internal/models"
)

func TestNewLimiterMetrics(t *testing.T) {
	_ = setupTestProvider(t)

	metrics, err := NewLimiterMetrics()
	require.NoError(t, err)
	assert.NotNil(t, metrics)
}

func TestLimiterMetrics_RecordDecision(t *testing.T) {
	_ = setupTestProvider(t)

	metrics, err := NewLimiterMetrics()
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/items", nil)

	// Both outcomes must record without panicking.
	metrics.RecordDecision(req, models.RouteStandard, true)
	metrics.RecordDecision(req, models.RouteStrict, false)
}
