package models

import (
	"time"

	"github.com/google/uuid"
)

// Warning is a record of a client exceeding its limit, persisted for later
// analysis. The JSON field names are the wire contract with the warnings
// consumer; WindowSeconds travels under the historical "windowMs" key but
// carries whole seconds.
type Warning struct {
	ID            string    `json:"id,omitempty"`
	ClientID      string    `json:"clientId"`
	Pathname      string    `json:"pathname"`
	RequestCount  int       `json:"requestCount"`
	MaxRequests   int       `json:"maxRequests"`
	WindowSeconds int       `json:"windowMs"`
	IPAddress     string    `json:"ipAddress"`
	UserAgent     string    `json:"userAgent"`
	Blocked       bool      `json:"blocked"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// NewWarningID returns a fresh identifier for a warning record.
func NewWarningID() string {
	return uuid.New().String()
}
