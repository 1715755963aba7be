package daemon

import (
	"encoding/json"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/manav03panchal/medremind/internal/notify"
	"github.com/manav03panchal/medremind/internal/scheduler"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the current health state of the daemon.
type HealthStatus struct {
	Status               string    `json:"status"`
	UptimeSeconds        int64     `json:"uptime_seconds"`
	MemoryMB             float64   `json:"memory_mb"`
	PendingNotifications int       `json:"pending_notifications"`
	LastCheck            time.Time `json:"last_check"`
	Version              string    `json:"version,omitempty"`
	Goroutines           int       `json:"goroutines"`
}

// HealthChecker provides health status for the daemon.
type HealthChecker struct {
	mu           sync.RWMutex
	startTime    time.Time
	lastCheck    time.Time
	pending      func() int
	version      string
	customChecks map[string]func() error
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		startTime:    time.Now(),
		version:      version,
		customChecks: make(map[string]func() error),
	}
}

// Check performs a health check and returns the status.
func (h *HealthChecker) Check() *HealthStatus {
	h.mu.Lock()
	h.lastCheck = time.Now()
	last := h.lastCheck
	pending := h.pending
	h.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := &HealthStatus{
		Status:        h.determineStatus(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		MemoryMB:      float64(memStats.Alloc) / 1024 / 1024,
		LastCheck:     last,
		Version:       h.version,
		Goroutines:    runtime.NumGoroutine(),
	}
	if pending != nil {
		status.PendingNotifications = pending()
	}
	return status
}

// determineStatus runs all checks and returns the status.
func (h *HealthChecker) determineStatus() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, check := range h.customChecks {
		if err := check(); err != nil {
			return StatusUnhealthy
		}
	}
	return StatusHealthy
}

// SetPendingSource sets the function reporting queued webhook deliveries.
func (h *HealthChecker) SetPendingSource(fn func() int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = fn
}

// AddCheck adds a custom health check function.
func (h *HealthChecker) AddCheck(name string, check func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.customChecks[name] = check
}

// JSON returns the health status as JSON.
func (h *HealthChecker) JSON() ([]byte, error) {
	return json.MarshalIndent(h.Check(), "", "  ")
}

// Uptime returns how long the daemon has been running.
func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.startTime)
}

// IsHealthy returns true if every check passes.
func (h *HealthChecker) IsHealthy() bool {
	return h.determineStatus() == StatusHealthy
}

// DetailedHealth is the body of the daemon's health endpoint.
type DetailedHealth struct {
	HealthStatus
	Checks    []CheckResult     `json:"checks"`
	Scheduler SchedulerHealth   `json:"scheduler"`
	Metrics   MetricsSnapshot   `json:"metrics"`
	Events    notify.HubStats   `json:"events"`
	Webhooks  notify.QueueStats `json:"webhooks"`
}

// SchedulerHealth describes the dispatch loop.
type SchedulerHealth struct {
	State    string                `json:"state"`
	Overlaps uint64                `json:"overlaps"`
	NextRun  *time.Time            `json:"next_run,omitempty"`
	LastTick *scheduler.TickResult `json:"last_tick,omitempty"`
}

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// DetailedCheck runs every check and reports them individually, sorted by name.
func (h *HealthChecker) DetailedCheck() *DetailedHealth {
	details := &DetailedHealth{HealthStatus: *h.Check()}

	h.mu.RLock()
	for name, check := range h.customChecks {
		result := CheckResult{Name: name, Healthy: true}
		if err := check(); err != nil {
			result.Healthy = false
			result.Error = err.Error()
		}
		details.Checks = append(details.Checks, result)
	}
	h.mu.RUnlock()

	sort.Slice(details.Checks, func(i, j int) bool {
		return details.Checks[i].Name < details.Checks[j].Name
	})
	return details
}
