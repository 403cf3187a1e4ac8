package warnings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"limitd/internal/models"
)

// internalHeader marks warning posts as server-to-server traffic. The ingest
// endpoint trusts this header instead of authenticating; it is only safe on
// a private network.
const internalHeader = "X-Internal-Request"

// HTTPSink posts warnings to a remote warnings endpoint
// (POST {base}/api/rate-limit-warnings).
type HTTPSink struct {
	url    string
	marker string
	client *http.Client
}

// NewHTTPSink creates a sink for the given base URL. marker is the
// X-Internal-Request value the consumer expects.
func NewHTTPSink(baseURL, marker string) *HTTPSink {
	return &HTTPSink{
		url:    strings.TrimRight(baseURL, "/") + "/api/rate-limit-warnings",
		marker: marker,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Deliver implements Sink.
func (s *HTTPSink) Deliver(ctx context.Context, w models.Warning) error {
	body, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal warning: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build warning request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(internalHeader, s.marker)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post warning: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("warnings endpoint returned %d", resp.StatusCode)
	}
	return nil
}
