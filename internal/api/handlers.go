package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"limitd/internal/models"
	"limitd/internal/storage"
	"limitd/internal/version"
)

// Handlers contains HTTP handlers for the limitd API.
type Handlers struct {
	store      storage.Storage
	security   models.SecurityConfig
	invalidate func()
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handlers)

// WithSecurityConfig supplies the security configuration used by the admin
// auth and internal-request checks.
func WithSecurityConfig(sec models.SecurityConfig) HandlerOption {
	return func(h *Handlers) { h.security = sec }
}

// WithSettingsInvalidator registers a callback fired after an admin writes
// new settings, so an in-process configuration cache refetches immediately
// instead of waiting out its TTL.
func WithSettingsInvalidator(fn func()) HandlerOption {
	return func(h *Handlers) { h.invalidate = fn }
}

// NewHandlers creates a new handlers instance.
func NewHandlers(store storage.Storage, opts ...HandlerOption) *Handlers {
	h := &Handlers{store: store}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthCheck handles health check requests.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.GetInfo().Version

	if err := h.store.Ping(r.Context()); err != nil {
		response.AddComponent("storage", models.StatusUnhealthy, err.Error())
	} else {
		response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
	}
	response.AddComponent("api", models.StatusHealthy, "API is operational")

	status := http.StatusOK
	if response.Status == models.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, status, response)
}

// GetPlatformSettings handles settings read requests.
// GET /api/admin/platform-settings
func (h *Handlers) GetPlatformSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.PlatformSettings(r.Context())
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}
	h.writeJSONResponse(w, http.StatusOK, settings)
}

// PutPlatformSettings handles settings replacement requests.
// PUT /api/admin/platform-settings
func (h *Handlers) PutPlatformSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.PlatformSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	if err := settings.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	if err := h.store.SavePlatformSettings(r.Context(), &settings); err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}
	h.invalidateSettings()

	saved, err := h.store.PlatformSettings(r.Context())
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}
	h.writeJSONResponse(w, http.StatusOK, saved)
}

// ListRouteLimits handles route limit list requests.
// GET /api/admin/route-limits
func (h *Handlers) ListRouteLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.store.RouteLimits(r.Context())
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}
	if limits == nil {
		limits = []models.RouteLimit{}
	}
	h.writeJSONResponse(w, http.StatusOK, limits)
}

// GetRouteLimit handles single route limit read requests.
// GET /api/admin/route-limits/{route_type}
func (h *Handlers) GetRouteLimit(w http.ResponseWriter, r *http.Request) {
	routeType := models.RouteType(mux.Vars(r)["route_type"])
	if !routeType.Valid() {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest,
			fmt.Sprintf("unknown route type: %s", routeType))
		return
	}

	limit, err := h.store.GetRouteLimit(r.Context(), routeType)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
				fmt.Sprintf("no limit configured for route type %s", routeType))
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}
	h.writeJSONResponse(w, http.StatusOK, limit)
}

// PutRouteLimit handles route limit upsert requests.
// PUT /api/admin/route-limits/{route_type}
func (h *Handlers) PutRouteLimit(w http.ResponseWriter, r *http.Request) {
	routeType := models.RouteType(mux.Vars(r)["route_type"])

	var limit models.RouteLimit
	if err := json.NewDecoder(r.Body).Decode(&limit); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	// Path wins over body.
	limit.RouteType = routeType
	if err := limit.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	if err := h.store.SaveRouteLimit(r.Context(), &limit); err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}
	h.invalidateSettings()
	h.writeJSONResponse(w, http.StatusOK, &limit)
}

// DeleteRouteLimit handles route limit removal requests.
// DELETE /api/admin/route-limits/{route_type}
func (h *Handlers) DeleteRouteLimit(w http.ResponseWriter, r *http.Request) {
	routeType := models.RouteType(mux.Vars(r)["route_type"])

	if err := h.store.DeleteRouteLimit(r.Context(), routeType); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
				fmt.Sprintf("no limit configured for route type %s", routeType))
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}
	h.invalidateSettings()
	w.WriteHeader(http.StatusNoContent)
}

// IngestWarning handles warning record submissions from limiter instances.
// POST /api/rate-limit-warnings
// Trusted via the X-Internal-Request header, not authenticated.
func (h *Handlers) IngestWarning(w http.ResponseWriter, r *http.Request) {
	var warning models.Warning
	if err := json.NewDecoder(r.Body).Decode(&warning); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	if warning.ClientID == "" || warning.Pathname == "" {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation,
			"clientId and pathname are required")
		return
	}

	if err := h.store.InsertWarning(r.Context(), &warning); err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ListWarnings handles warning list requests.
// GET /api/admin/rate-limit-warnings?limit=N
func (h *Handlers) ListWarnings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	warnings, err := h.store.Warnings(r.Context(), limit)
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}
	if warnings == nil {
		warnings = []*models.Warning{}
	}
	h.writeJSONResponse(w, http.StatusOK, &models.ListWarningsResponse{
		Warnings:   warnings,
		TotalCount: len(warnings),
	})
}

// PruneWarnings handles warning retention requests.
// DELETE /api/admin/rate-limit-warnings?before=RFC3339
func (h *Handlers) PruneWarnings(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("before")
	if raw == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "before query parameter is required")
		return
	}
	cutoff, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "before must be an RFC3339 timestamp")
		return
	}

	deleted, err := h.store.DeleteWarningsBefore(r.Context(), cutoff)
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, err.Error())
		return
	}
	h.writeJSONResponse(w, http.StatusOK, &models.PruneWarningsResponse{
		Deleted: deleted,
		Message: fmt.Sprintf("deleted %d warning records", deleted),
	})
}

// Passthrough answers any unmatched API path. It stands in for the protected
// upstream so the limiter can be exercised end to end without one.
func (h *Handlers) Passthrough(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "ok",
		"path":   r.URL.Path,
	})
}

func (h *Handlers) invalidateSettings() {
	if h.invalidate != nil {
		h.invalidate()
	}
}

// writeJSONResponse writes a JSON response.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more to send.
		fmt.Printf("Error encoding JSON response: %v\n", err)
	}
}

// writeErrorResponse writes an error response.
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}
