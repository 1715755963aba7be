package daemon

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/scheduler"
)

// Metrics tracks daemon dispatch metrics for the health endpoint.
type Metrics struct {
	// Counters
	ticks           atomic.Int64
	remindersFired  atomic.Int64
	remindersFailed atomic.Int64
	remindersHealed atomic.Int64
	errorsTotal     atomic.Int64

	mu               sync.RWMutex
	lastTickAt       time.Time
	lastTickDuration time.Duration
	lastFiredAt      time.Time
	lastError        string
	lastErrorAt      time.Time

	errorsByCategory map[string]int64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		errorsByCategory: make(map[string]int64),
	}
}

// MetricsSnapshot represents a point-in-time view of metrics.
type MetricsSnapshot struct {
	TicksTotal           int64            `json:"ticks_total"`
	RemindersFiredTotal  int64            `json:"reminders_fired_total"`
	RemindersFailedTotal int64            `json:"reminders_failed_total"`
	RemindersHealedTotal int64            `json:"reminders_healed_total"`
	ErrorsTotal          int64            `json:"errors_total"`
	LastTickAt           *time.Time       `json:"last_tick_at,omitempty"`
	LastTickDurationMs   int64            `json:"last_tick_duration_ms"`
	LastFiredAt          *time.Time       `json:"last_fired_at,omitempty"`
	LastError            string           `json:"last_error,omitempty"`
	LastErrorAt          *time.Time       `json:"last_error_at,omitempty"`
	ErrorsByCategory     map[string]int64 `json:"errors_by_category,omitempty"`
}

// Snapshot returns a copy of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TicksTotal:           m.ticks.Load(),
		RemindersFiredTotal:  m.remindersFired.Load(),
		RemindersFailedTotal: m.remindersFailed.Load(),
		RemindersHealedTotal: m.remindersHealed.Load(),
		ErrorsTotal:          m.errorsTotal.Load(),
		LastTickDurationMs:   m.lastTickDuration.Milliseconds(),
		LastError:            m.lastError,
		ErrorsByCategory:     make(map[string]int64, len(m.errorsByCategory)),
	}

	if !m.lastTickAt.IsZero() {
		t := m.lastTickAt
		snap.LastTickAt = &t
	}
	if !m.lastFiredAt.IsZero() {
		t := m.lastFiredAt
		snap.LastFiredAt = &t
	}
	if !m.lastErrorAt.IsZero() {
		t := m.lastErrorAt
		snap.LastErrorAt = &t
	}

	for k, v := range m.errorsByCategory {
		snap.ErrorsByCategory[k] = v
	}

	return snap
}

// JSON returns metrics as JSON.
func (m *Metrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m.Snapshot(), "", "  ")
}

// RecordTick records one completed scheduler tick.
func (m *Metrics) RecordTick(r scheduler.TickResult) {
	m.ticks.Add(1)
	m.remindersFired.Add(int64(r.Fired))
	m.remindersFailed.Add(int64(r.Failed))
	m.remindersHealed.Add(int64(r.Healed))

	m.mu.Lock()
	m.lastTickAt = r.At
	m.lastTickDuration = r.Duration
	if r.Fired > 0 {
		m.lastFiredAt = r.At
	}
	m.mu.Unlock()

	if r.Err != nil {
		m.RecordError(r.Err)
	}
}

// RecordError records an error under its classified category.
func (m *Metrics) RecordError(err error) {
	m.errorsTotal.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastError = err.Error()
	m.lastErrorAt = time.Now()
	m.errorsByCategory[errors.GetCategory(err).String()]++
}

// Ticks returns the total completed ticks.
func (m *Metrics) Ticks() int64 {
	return m.ticks.Load()
}

// RemindersFired returns the total reminders fired.
func (m *Metrics) RemindersFired() int64 {
	return m.remindersFired.Load()
}

// ErrorsTotal returns the total errors.
func (m *Metrics) ErrorsTotal() int64 {
	return m.errorsTotal.Load()
}

// Reset resets all metrics to zero.
func (m *Metrics) Reset() {
	m.ticks.Store(0)
	m.remindersFired.Store(0)
	m.remindersFailed.Store(0)
	m.remindersHealed.Store(0)
	m.errorsTotal.Store(0)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastTickAt = time.Time{}
	m.lastTickDuration = 0
	m.lastFiredAt = time.Time{}
	m.lastError = ""
	m.lastErrorAt = time.Time{}
	m.errorsByCategory = make(map[string]int64)
}
