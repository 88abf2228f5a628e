/*
Package metrics provides Prometheus metrics collection and exposition for
remindsync, plus a small component health registry used for readiness.

All metrics are package variables registered with the default registry in
init, so any package can record into them without wiring:

	metrics.AlertsScheduled.Inc()
	metrics.ReminderOperations.WithLabelValues("local", "complete").Inc()

	timer := metrics.NewTimer()
	// ... reconcile ...
	timer.ObserveDuration(metrics.ReconciliationDuration)

Handler returns the exposition handler served on /metrics.

# Metrics Catalog

Store:

	remindsync_reminders_active                      gauge
	remindsync_reminders_overdue                     gauge
	remindsync_reminder_operations_total             counter {backend, operation}
	remindsync_store_operation_duration_seconds      histogram {backend, operation}

Parsing:

	remindsync_parse_requests_total                  counter {source}   local, ai
	remindsync_parse_fallbacks_total                 counter {reason}   malformed, unavailable

Alerts and reconciliation:

	remindsync_alerts_scheduled_total                counter
	remindsync_alerts_failed_total                   counter
	remindsync_alerts_delivered_total                counter
	remindsync_badge_count                           gauge
	remindsync_reconciliation_duration_seconds       histogram
	remindsync_reconciliation_cycles_total           counter

Extension bridge:

	remindsync_intents_enqueued_total                counter {type}     snooze, complete
	remindsync_intents_replayed_total                counter {outcome}  applied, skipped, dropped, failed, discarded

Fan-out service:

	remindsync_changes_total                         counter {action}
	remindsync_pushes_sent_total                     counter
	remindsync_pushes_failed_total                   counter
	remindsync_devices_pruned_total                  counter {reason}   unregistered, stale
	remindsync_api_requests_total                    counter {method, status}
	remindsync_api_request_duration_seconds          histogram {method}

The API labels use the matched route pattern ("PUT /v1/users/:uid/devices/:deviceId")
so per-user paths do not create new series.

# Collector

Collector samples the store every 15 seconds and sets the active and overdue
gauges. A failed read keeps the previous values.

	c := metrics.NewCollector(store)
	c.Start()
	defer c.Stop()

# Health Registry

Components report their state with UpdateComponent, which also sets
remindsync_component_healthy{component}. GetReadiness reports "ready" only
when every component named in SetCriticalComponents has reported and is
healthy. The api package's
HealthServer drives this registry from its checks.
*/
package metrics
