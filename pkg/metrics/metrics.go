// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ToolCallDuration tracks agent tool call duration.
	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_tool_call_duration_seconds",
			Help:    "Agent tool call duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"tool", "outcome"},
	)

	// ToolCallsTotal tracks total agent tool calls.
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tool_calls_total",
			Help: "Total agent tool calls",
		},
		[]string{"tool", "outcome"},
	)

	// BookingConflictsTotal tracks bookings rejected because the slot was taken.
	BookingConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_booking_conflicts_total",
			Help: "Bookings rejected because the slot was already taken",
		},
	)

	// AppointmentsTotal tracks appointment mutations by action.
	AppointmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_appointments_total",
			Help: "Appointment mutations by action",
		},
		[]string{"action"},
	)

	// SummaryFallbacksTotal tracks AI summaries that fell back to the deterministic text.
	SummaryFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_summary_fallbacks_total",
			Help: "AI summary attempts that fell back to the deterministic text",
		},
		[]string{"reason"},
	)

	// SummaryDuration tracks end-of-conversation summary generation duration.
	SummaryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_summary_duration_seconds",
			Help:    "Summary generation duration including the AI attempt",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 6, 8, 10},
		},
	)

	// NotifyPublishFailures tracks notification channel publish failures.
	NotifyPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_notify_publish_failures_total",
			Help: "Notification channel publish failures",
		},
		[]string{"event_type"},
	)

	// StoreErrorsTotal tracks appointment store operation failures.
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_store_errors_total",
			Help: "Appointment store operation failures",
		},
		[]string{"operation"},
	)

	// RequestDuration tracks admin API request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total admin API requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// RecordToolCall records metrics for one agent tool invocation.
func RecordToolCall(tool, outcome string, duration float64) {
	ToolCallDuration.WithLabelValues(tool, outcome).Observe(duration)
	ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}
