package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tempest_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempest_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)

	// Ingest metrics
	ReadingsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempest_readings_ingested_total",
			Help: "Readings received, by source (http, mqtt) and status (stored, invalid, duplicate, failed)",
		},
		[]string{"source", "status"},
	)

	// Alert metrics
	AlertEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempest_alert_evaluations_total",
			Help: "Alert evaluations by result (cooldown, no_value, not_met, triggered, lost_race, error)",
		},
		[]string{"result"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempest_notifications_total",
			Help: "Notification attempts by channel and status (sent, failed)",
		},
		[]string{"channel", "status"},
	)

	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tempest_notification_duration_seconds",
			Help:    "Time spent delivering one notification",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"channel"},
	)

	// Scheduler metrics
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempest_job_runs_total",
			Help: "Scheduled job runs by job (sweep, cleanup) and status (ok, error, skipped)",
		},
		[]string{"job", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tempest_job_duration_seconds",
			Help:    "Scheduled job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	HistoryRowsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tempest_alert_history_deleted_total",
			Help: "Alert history rows removed by retention cleanup",
		},
	)

	MQTTMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempest_mqtt_messages_total",
			Help: "MQTT messages received by status (processed, invalid, failed)",
		},
		[]string{"status"},
	)
)
