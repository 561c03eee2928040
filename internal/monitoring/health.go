package monitoring

import (
	"context"
	"sync"
	"time"
)

// HealthChecker aggregates component health for the /health endpoint.
type HealthChecker interface {
	CheckHealth(ctx context.Context) *HealthStatus
	RegisterCheck(name string, check CheckFunc)
}

// CheckFunc probes one component; nil means healthy.
type CheckFunc func(ctx context.Context) error

type HealthStatus struct {
	Status     string                     `json:"status"` // "healthy" or "degraded"
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
	Version    string                     `json:"version"`
	Components map[string]ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Status   string `json:"status"` // "healthy" or "unhealthy"
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

type healthChecker struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewHealthChecker creates a health checker reporting the given version.
func NewHealthChecker(version string) HealthChecker {
	return &healthChecker{
		checks:    make(map[string]CheckFunc),
		startTime: time.Now(),
		version:   version,
		timeout:   5 * time.Second,
	}
}

func (h *healthChecker) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

func (h *healthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.mu.RUnlock()

	status := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Version:    h.version,
		Components: make(map[string]ComponentHealth, len(checks)),
	}

	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		start := time.Now()
		err := check(checkCtx)
		cancel()

		component := ComponentHealth{
			Status:   "healthy",
			Duration: time.Since(start).Round(time.Millisecond).String(),
		}
		if err != nil {
			component.Status = "unhealthy"
			component.Error = err.Error()
			status.Status = "degraded"
		}
		status.Components[name] = component
	}

	return status
}
