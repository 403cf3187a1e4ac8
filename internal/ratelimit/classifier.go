package ratelimit

import (
	"strings"

	"limitd/internal/models"
)

// Fixed classifier prefixes. Auth and admin are part of the API surface and
// not operator-tunable.
const (
	authPrefix  = "/api/auth"
	adminPrefix = "/api/admin"
)

// Classifier maps request paths to route categories by prefix match.
// Precedence is auth, admin, strict, exempt, then standard as the default.
// Classification is pure and deterministic for a given path.
type Classifier struct {
	strict []string
	exempt []string
}

// NewClassifier creates a classifier with the given strict and exempt prefix
// lists.
func NewClassifier(strictPrefixes, exemptPrefixes []string) *Classifier {
	return &Classifier{
		strict: strictPrefixes,
		exempt: exemptPrefixes,
	}
}

// Classify returns the route category for a request path.
func (c *Classifier) Classify(path string) models.RouteType {
	if strings.HasPrefix(path, authPrefix) {
		return models.RouteAuth
	}
	if strings.HasPrefix(path, adminPrefix) {
		return models.RouteAdmin
	}
	if hasAnyPrefix(path, c.strict) {
		return models.RouteStrict
	}
	if hasAnyPrefix(path, c.exempt) {
		return models.RouteExempt
	}
	return models.RouteStandard
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
