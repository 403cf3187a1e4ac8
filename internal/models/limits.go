// Package models defines the domain types shared across the limitd service:
// route categories, per-route limit configuration, platform settings, warning
// records, service configuration, and API response shapes.
package models

import (
	"fmt"
	"time"
)

// RouteType classifies a request path into one of the limit categories.
type RouteType string

const (
	RouteAuth     RouteType = "auth"
	RouteAdmin    RouteType = "admin"
	RouteStrict   RouteType = "strict"
	RouteStandard RouteType = "standard"
	RouteExempt   RouteType = "exempt"
)

// RouteTypes lists every valid route category.
var RouteTypes = []RouteType{RouteAuth, RouteAdmin, RouteStrict, RouteStandard, RouteExempt}

// Valid reports whether rt is a known route category.
func (rt RouteType) Valid() bool {
	for _, t := range RouteTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// RouteLimit is the limit configuration for one route category.
type RouteLimit struct {
	RouteType     RouteType `json:"route_type" yaml:"route_type"`
	MaxRequests   int       `json:"max_requests" yaml:"max_requests"`
	WindowMinutes int       `json:"window_minutes" yaml:"window_minutes"`
	Enabled       bool      `json:"enabled" yaml:"enabled"`
}

// Window returns the limit window as a duration. Windows shorter than a
// minute are not representable in the configuration schema.
func (rl RouteLimit) Window() time.Duration {
	if rl.WindowMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(rl.WindowMinutes) * time.Minute
}

// Validate checks a route limit for storable values.
func (rl *RouteLimit) Validate() error {
	if !rl.RouteType.Valid() {
		return fmt.Errorf("invalid route type: %s", rl.RouteType)
	}
	if rl.MaxRequests <= 0 {
		return fmt.Errorf("max_requests must be positive, got %d", rl.MaxRequests)
	}
	if rl.WindowMinutes <= 0 {
		return fmt.Errorf("window_minutes must be positive, got %d", rl.WindowMinutes)
	}
	return nil
}

// PlatformSettings is the admin-owned rate limiting configuration as served
// by and consumed from the platform-settings endpoint. The JSON field names
// are part of the wire contract with existing consumers.
type PlatformSettings struct {
	RateLimitingEnabled     bool         `json:"rateLimitingEnabled"`
	RateLimitConfigurations []RouteLimit `json:"rateLimitConfigurations"`
	UpdatedAt               time.Time    `json:"updatedAt,omitempty"`
}

// Validate checks every embedded route limit.
func (ps *PlatformSettings) Validate() error {
	seen := make(map[RouteType]bool, len(ps.RateLimitConfigurations))
	for i := range ps.RateLimitConfigurations {
		rl := &ps.RateLimitConfigurations[i]
		if err := rl.Validate(); err != nil {
			return fmt.Errorf("configuration %d: %w", i, err)
		}
		if seen[rl.RouteType] {
			return fmt.Errorf("duplicate configuration for route type %s", rl.RouteType)
		}
		seen[rl.RouteType] = true
	}
	return nil
}

// LimitTable is the resolved limit table the decision engine reads from.
// It is a value type; callers receive a copy and never share mutable state
// with the configuration cache.
type LimitTable struct {
	Enabled bool
	Routes  map[RouteType]RouteLimit
}

// For returns the limit for a route category, falling back to the built-in
// standard limit when the category has no entry.
func (t LimitTable) For(rt RouteType) RouteLimit {
	if rl, ok := t.Routes[rt]; ok {
		return rl
	}
	return defaultRouteLimits[RouteStandard]
}

// defaultRouteLimits is the built-in fallback table used when no
// configuration has ever been fetched successfully.
var defaultRouteLimits = map[RouteType]RouteLimit{
	RouteAuth:     {RouteType: RouteAuth, MaxRequests: 20, WindowMinutes: 1, Enabled: true},
	RouteAdmin:    {RouteType: RouteAdmin, MaxRequests: 20, WindowMinutes: 1, Enabled: true},
	RouteStrict:   {RouteType: RouteStrict, MaxRequests: 20, WindowMinutes: 1, Enabled: true},
	RouteStandard: {RouteType: RouteStandard, MaxRequests: 100, WindowMinutes: 1, Enabled: true},
	RouteExempt:   {RouteType: RouteExempt, MaxRequests: 1000, WindowMinutes: 1, Enabled: false},
}

// DefaultLimitTable returns a fresh copy of the built-in fallback table.
func DefaultLimitTable() LimitTable {
	routes := make(map[RouteType]RouteLimit, len(defaultRouteLimits))
	for rt, rl := range defaultRouteLimits {
		routes[rt] = rl
	}
	return LimitTable{Enabled: true, Routes: routes}
}

// DefaultPlatformSettings returns the built-in table in wire form, used to
// seed an empty store on first start.
func DefaultPlatformSettings() *PlatformSettings {
	ps := &PlatformSettings{RateLimitingEnabled: true}
	for _, rt := range RouteTypes {
		ps.RateLimitConfigurations = append(ps.RateLimitConfigurations, defaultRouteLimits[rt])
	}
	return ps
}

// Table converts wire-form settings into the resolved table. Categories
// missing from the settings keep their built-in defaults.
func (ps *PlatformSettings) Table() LimitTable {
	t := DefaultLimitTable()
	t.Enabled = ps.RateLimitingEnabled
	for _, rl := range ps.RateLimitConfigurations {
		if rl.RouteType.Valid() {
			t.Routes[rl.RouteType] = rl
		}
	}
	return t
}
