package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the scheduler
type Metrics struct {
	// Queue metrics
	TasksQueued prometheus.Counter
	QueueDepth  *prometheus.GaugeVec

	// Assignment metrics
	AssignmentsTotal  *prometheus.CounterVec
	AssignmentMisses  prometheus.Counter
	ActiveAssignments prometheus.Gauge
	TaskDuration      *prometheus.HistogramVec
	TasksCompleted    *prometheus.CounterVec

	// Agent pool metrics
	AgentsTotal *prometheus.GaugeVec

	// Permission metrics
	PermissionDenials *prometheus.CounterVec
	QuotaRejections   *prometheus.CounterVec

	// System metrics
	EventsPublished     *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			TasksQueued: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "agency_tasks_queued_total",
					Help: "Total number of tasks enqueued",
				},
			),
			QueueDepth: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "agency_queue_depth",
					Help: "Number of pending tasks in the queue by priority",
				},
				[]string{"priority"},
			),
			AssignmentsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agency_assignments_total",
					Help: "Total number of task assignments",
				},
				[]string{"priority", "strategy"},
			),
			AssignmentMisses: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "agency_assignment_misses_total",
					Help: "Total number of assignment attempts with no eligible agent",
				},
			),
			ActiveAssignments: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "agency_active_assignments",
					Help: "Number of assignments currently in flight",
				},
			),
			TaskDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agency_task_duration_seconds",
					Help:    "Wall-clock task duration from assignment to completion",
					Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to 512s
				},
				[]string{"priority", "success"},
			),
			TasksCompleted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agency_tasks_completed_total",
					Help: "Total number of tasks finished by result",
				},
				[]string{"result"},
			),
			AgentsTotal: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "agency_agents_total",
					Help: "Number of registered agents by status",
				},
				[]string{"status"},
			),
			PermissionDenials: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agency_permission_denials_total",
					Help: "Total number of denied tool execution checks",
				},
				[]string{"level", "category"},
			),
			QuotaRejections: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agency_quota_rejections_total",
					Help: "Total number of execution starts blocked by quota",
				},
				[]string{"reason"},
			),
			EventsPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agency_events_published_total",
					Help: "Total number of lifecycle events published",
				},
				[]string{"event_type"},
			),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agency_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agency_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
		}
	})

	return sharedMetrics
}

// RecordAssignment records a successful task assignment.
func (m *Metrics) RecordAssignment(priority, strategy string) {
	m.AssignmentsTotal.WithLabelValues(priority, strategy).Inc()
	m.ActiveAssignments.Inc()
}

// RecordTaskFinished records a completion or failure with its wall-clock duration.
func (m *Metrics) RecordTaskFinished(priority string, success bool, durationSeconds float64) {
	successStr := "false"
	result := "failed"
	if success {
		successStr = "true"
		result = "completed"
	}
	m.TaskDuration.WithLabelValues(priority, successStr).Observe(durationSeconds)
	m.TasksCompleted.WithLabelValues(result).Inc()
	m.ActiveAssignments.Dec()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}
