package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/rpcbridge/rpcbridge/internal/bridge"
)

// HealthResponse is the JSON response from the /healthz endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// HealthChecker verifies component health.
type HealthChecker struct {
	transport *bridge.Transport
	version   string
}

// NewHealthChecker creates a HealthChecker. Pass nil for the transport if it
// isn't available.
func NewHealthChecker(transport *bridge.Transport, version string) *HealthChecker {
	return &HealthChecker{
		transport: transport,
		version:   version,
	}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)

	if h.transport != nil {
		// PendingCalls acquires the registry lock - if this hangs, we have a problem
		checks["pending_calls"] = fmt.Sprintf("%d", h.transport.PendingCalls())
		if drops := h.transport.DroppedResponses(); drops > 0 {
			checks["dropped_responses"] = fmt.Sprintf("%d dropped", drops)
		}
	} else {
		checks["transport"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	return HealthResponse{
		Status:  "healthy",
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}
