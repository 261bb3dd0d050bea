package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const readinessCheckTimeout = 5 * time.Second

// ReadinessCheck probes a single dependency and returns an error when it is not usable.
type ReadinessCheck func(ctx context.Context) error

// HealthHandlers serves liveness and readiness probes for the API process.
type HealthHandlers struct {
	startedAt time.Time
	checks    map[string]ReadinessCheck
}

// NewHealthHandlers constructs health handlers with the given named readiness checks.
func NewHealthHandlers(checks map[string]ReadinessCheck) *HealthHandlers {
	return &HealthHandlers{
		startedAt: time.Now(),
		checks:    checks,
	}
}

// Healthz reports process liveness along with uptime for monitoring.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeHealthPayload(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.startedAt).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz runs the configured dependency checks and reports 503 when any fail.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessCheckTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	payload := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		payload["status"] = "unavailable"
	}
	if len(results) > 0 {
		payload["checks"] = results
	}
	writeHealthPayload(w, status, payload)
}

func writeHealthPayload(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
