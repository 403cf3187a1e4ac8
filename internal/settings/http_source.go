package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"limitd/internal/models"
)

// HTTPSource fetches platform settings from a remote admin endpoint
// (GET {base}/api/admin/platform-settings). The client enforces its own
// timeout so a hung settings endpoint cannot stall request handling.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for the given base URL.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		url:    strings.TrimRight(baseURL, "/") + "/api/admin/platform-settings",
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) (*models.PlatformSettings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build settings request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("settings endpoint returned %d", resp.StatusCode)
	}

	var ps models.PlatformSettings
	if err := json.NewDecoder(resp.Body).Decode(&ps); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if ps.RateLimitConfigurations == nil {
		return nil, fmt.Errorf("settings response missing rateLimitConfigurations")
	}
	if err := ps.Validate(); err != nil {
		return nil, fmt.Errorf("settings response invalid: %w", err)
	}

	return &ps, nil
}
