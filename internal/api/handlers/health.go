package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"

	checkTimeout = 2 * time.Second
)

// HealthStore is what the health endpoint probes.
type HealthStore interface {
	Ping(ctx context.Context) error
	// MigrationState reports the applied schema version. ok is false when no
	// migration has run yet.
	MigrationState(ctx context.Context) (version int64, dirty bool, ok bool, err error)
}

type HealthReport struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms"`
	Details   map[string]any `json:"details,omitempty"`
}

type HealthHandler struct {
	Store   HealthStore
	Version string
	now     func() time.Time
}

func NewHealthHandler(store HealthStore, version string) *HealthHandler {
	return &HealthHandler{Store: store, Version: version, now: time.Now}
}

// Health reports 200 while the database answers and 503 otherwise. A dirty
// or missing migration state degrades the status without failing it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Context().Err() != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthReport{Message: "Server is shutting down", Status: "shutting_down"})
		return
	}

	checks := map[string]CheckResult{
		"database":   h.checkDatabase(r.Context()),
		"migrations": h.checkMigrations(r.Context()),
	}

	report := HealthReport{
		Success:   true,
		Message:   "Server is running",
		Status:    "healthy",
		Version:   h.Version,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	status := http.StatusOK
	for _, check := range checks {
		if check.Status == statusFail {
			report.Success = false
			report.Message = "Service unavailable"
			report.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			break
		}
		if check.Status == statusWarn {
			report.Status = "degraded"
		}
	}

	writeJSON(w, status, report)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckResult {
	if h.Store == nil {
		return CheckResult{Status: statusFail, Message: "Database not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := h.Store.Ping(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Database query failed"
		if errors.Is(err, context.DeadlineExceeded) {
			message = "Database query timed out"
		}
		return CheckResult{Status: statusFail, Message: message, LatencyMs: latency}
	}
	return CheckResult{Status: statusPass, Message: "PostgreSQL connection successful", LatencyMs: latency}
}

func (h *HealthHandler) checkMigrations(ctx context.Context) CheckResult {
	if h.Store == nil {
		return CheckResult{Status: statusFail, Message: "Database not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	version, dirty, ok, err := h.Store.MigrationState(ctx)
	latency := time.Since(start).Milliseconds()
	switch {
	case err != nil:
		return CheckResult{Status: statusWarn, Message: "Failed to query migration version", LatencyMs: latency}
	case !ok:
		return CheckResult{Status: statusWarn, Message: "No migrations applied", LatencyMs: latency}
	case dirty:
		return CheckResult{
			Status:    statusWarn,
			Message:   "Migration state is dirty",
			LatencyMs: latency,
			Details:   map[string]any{"version": version, "dirty": true},
		}
	}
	return CheckResult{
		Status:    statusPass,
		LatencyMs: latency,
		Details:   map[string]any{"version": version},
	}
}
