package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"limitd/internal/models"
)

func newTestClassifier() *Classifier {
	return NewClassifier(
		[]string{"/api/tenants"},
		[]string{"/api/directory", "/api/items", "/api/storefront", "/api/products"},
	)
}

func TestClassifier_Classify(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		path string
		want models.RouteType
	}{
		{"/api/auth/login", models.RouteAuth},
		{"/api/auth", models.RouteAuth},
		{"/api/admin/platform-settings", models.RouteAdmin},
		{"/api/tenants", models.RouteStrict},
		{"/api/tenants/42/billing", models.RouteStrict},
		{"/api/directory", models.RouteExempt},
		{"/api/items/123", models.RouteExempt},
		{"/api/storefront/acme", models.RouteExempt},
		{"/api/products", models.RouteExempt},
		{"/api/orders", models.RouteStandard},
		{"/api/cart/checkout", models.RouteStandard},
		{"/health", models.RouteStandard},
		{"/", models.RouteStandard},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.path), "path %s", tt.path)
	}
}

func TestClassifier_AuthWinsOverConfiguredPrefixes(t *testing.T) {
	// A strict or exempt prefix overlapping the auth prefix must not
	// reclassify auth traffic.
	c := NewClassifier([]string{"/api/auth"}, []string{"/api/auth/callback"})
	assert.Equal(t, models.RouteAuth, c.Classify("/api/auth/callback"))
}

func TestClassifier_StrictWinsOverExempt(t *testing.T) {
	c := NewClassifier([]string{"/api/shop"}, []string{"/api/shop/public"})
	assert.Equal(t, models.RouteStrict, c.Classify("/api/shop/public"))
}

func TestClassifier_EmptyPrefixLists(t *testing.T) {
	c := NewClassifier(nil, nil)
	assert.Equal(t, models.RouteStandard, c.Classify("/api/anything"))
	assert.Equal(t, models.RouteAuth, c.Classify("/api/auth/login"))
}

func TestClientIP(t *testing.T) {
	t.Run("forwarded for single", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/orders", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9")
		assert.Equal(t, "203.0.113.9", ClientIP(r))
	})

	t.Run("forwarded for chain uses first hop", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/orders", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1, 10.0.0.2")
		assert.Equal(t, "203.0.113.9", ClientIP(r))
	})

	t.Run("real ip fallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/orders", nil)
		r.Header.Set("X-Real-IP", "198.51.100.4")
		assert.Equal(t, "198.51.100.4", ClientIP(r))
	})

	t.Run("forwarded for wins over real ip", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/orders", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9")
		r.Header.Set("X-Real-IP", "198.51.100.4")
		assert.Equal(t, "203.0.113.9", ClientIP(r))
	})

	t.Run("no headers", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/orders", nil)
		assert.Equal(t, "unknown", ClientIP(r))
	})
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/orders", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.Header.Set("User-Agent", "storefront/2.1")
	assert.Equal(t, "203.0.113.9:storefront/2.1", ClientKey(r))

	// Missing user agent still yields a usable key.
	r.Header.Del("User-Agent")
	assert.Equal(t, "203.0.113.9:", ClientKey(r))
}
