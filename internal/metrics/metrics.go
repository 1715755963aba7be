// Package metrics exposes medremind's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medremind_scheduler_ticks_total",
			Help: "Scheduler tick activations by outcome (run, overlap)",
		},
		[]string{"outcome"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medremind_scheduler_tick_duration_seconds",
			Help:    "Time taken by one dispatcher tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RemindersEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medremind_reminders_evaluated_total",
			Help: "Total number of active reminders evaluated by ticks",
		},
	)

	RemindersFired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medremind_reminders_fired_total",
			Help: "Total number of reminders marked fired and published",
		},
	)

	ReminderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medremind_reminder_failures_total",
			Help: "Per-reminder dispatch failures by stage",
		},
		[]string{"stage"},
	)

	RemindersHealed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medremind_reminders_healed_total",
			Help: "Reminders deactivated because their medication was missing or inactive",
		},
	)

	// Reconciler metrics
	RemindersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medremind_reminders_created_total",
			Help: "Total number of reminder records created by reconciliation",
		},
	)

	// Fan-out metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "medremind_sessions_active",
			Help: "Number of live realtime sessions",
		},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medremind_events_published_total",
			Help: "Events delivered to sessions by event type",
		},
		[]string{"type"},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medremind_events_dropped_total",
			Help: "Events dropped because a session buffer was full",
		},
	)

	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medremind_webhook_deliveries_total",
			Help: "Webhook deliveries by result (success, failure, queued)",
		},
		[]string{"result"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medremind_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medremind_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(RemindersEvaluated)
	prometheus.MustRegister(RemindersFired)
	prometheus.MustRegister(ReminderFailures)
	prometheus.MustRegister(RemindersHealed)
	prometheus.MustRegister(RemindersCreated)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(WebhookDeliveries)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation for a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in seconds on h.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}
