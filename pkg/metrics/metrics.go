package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reminder metrics
	RemindersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "remindsync_reminders_active",
			Help: "Number of active reminders in the store",
		},
	)

	RemindersOverdue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "remindsync_reminders_overdue",
			Help: "Number of active reminders whose effective instant has passed",
		},
	)

	ReminderOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindsync_reminder_operations_total",
			Help: "Total number of reminder mutations by backend and operation",
		},
		[]string{"backend", "operation"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remindsync_store_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// Parse metrics
	ParseRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindsync_parse_requests_total",
			Help: "Total number of parsed inputs by the source that produced the draft",
		},
		[]string{"source"},
	)

	ParseFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindsync_parse_fallbacks_total",
			Help: "Total number of AI parse attempts that fell back to the local extractor",
		},
		[]string{"reason"},
	)

	// Notification metrics
	AlertsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remindsync_alerts_scheduled_total",
			Help: "Total number of alerts scheduled",
		},
	)

	AlertsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remindsync_alerts_failed_total",
			Help: "Total number of alerts the alert center rejected",
		},
	)

	AlertsDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remindsync_alerts_delivered_total",
			Help: "Total number of alerts delivered",
		},
	)

	BadgeCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "remindsync_badge_count",
			Help: "Current badge count",
		},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remindsync_reconciliation_duration_seconds",
			Help:    "Time taken to resync alerts with the active set in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remindsync_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles",
		},
	)

	// Extension bridge metrics
	IntentsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindsync_intents_enqueued_total",
			Help: "Total number of pending intents queued by the extension",
		},
		[]string{"type"},
	)

	IntentsReplayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindsync_intents_replayed_total",
			Help: "Total number of drained intents by outcome",
		},
		[]string{"outcome"},
	)

	// Fan-out metrics
	ChangesClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindsync_changes_total",
			Help: "Total number of reminder changes by classified action",
		},
		[]string{"action"},
	)

	PushesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remindsync_pushes_sent_total",
			Help: "Total number of silent pushes accepted by the push service",
		},
	)

	PushesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remindsync_pushes_failed_total",
			Help: "Total number of silent pushes rejected by the push service",
		},
	)

	DevicesPruned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindsync_devices_pruned_total",
			Help: "Total number of device registrations removed by reason",
		},
		[]string{"reason"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindsync_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remindsync_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// ComponentHealthy mirrors the health registry, 1 for healthy
var ComponentHealthy = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "remindsync_component_healthy",
		Help: "Whether a readiness component passed its last check",
	},
	[]string{"component"},
)

func init() {
	// Register all metrics
	prometheus.MustRegister(RemindersActive)
	prometheus.MustRegister(RemindersOverdue)
	prometheus.MustRegister(ReminderOperations)
	prometheus.MustRegister(StoreOperationDuration)
	prometheus.MustRegister(ParseRequests)
	prometheus.MustRegister(ParseFallbacks)
	prometheus.MustRegister(AlertsScheduled)
	prometheus.MustRegister(AlertsFailed)
	prometheus.MustRegister(AlertsDelivered)
	prometheus.MustRegister(BadgeCount)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCycles)
	prometheus.MustRegister(IntentsEnqueued)
	prometheus.MustRegister(IntentsReplayed)
	prometheus.MustRegister(ChangesClassified)
	prometheus.MustRegister(PushesSent)
	prometheus.MustRegister(PushesFailed)
	prometheus.MustRegister(DevicesPruned)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(ComponentHealthy)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
