// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadinbox_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leadinbox_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadinbox_webhook_deliveries_total",
		Help: "Webhook deliveries by source and outcome",
	}, []string{"source", "outcome"})

	automationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadinbox_automation_decisions_total",
		Help: "Automation evaluations by resulting policy",
	}, []string{"policy"})

	reconnectRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadinbox_reconnect_retries_total",
		Help: "Data operations retried after a transient connection error",
	}, []string{"operation"})

	gatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadinbox_gateway_calls_total",
		Help: "Outbound messaging gateway calls by operation and result",
	}, []string{"operation", "result"})

	backgroundTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadinbox_background_tasks_total",
		Help: "Best-effort background tasks by name and result",
	}, []string{"task", "result"})
)

// ObserveHTTPRequest records an HTTP request metric. route is the mux
// pattern, not the raw path, to keep label cardinality bounded.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveWebhook counts a webhook delivery outcome ("applied", "rejected",
// "invalid", "not_found", "failed").
func ObserveWebhook(source, outcome string) {
	webhookDeliveries.WithLabelValues(source, outcome).Inc()
}

// ObserveDecision counts an automation decision.
func ObserveDecision(policy string) {
	automationDecisions.WithLabelValues(policy).Inc()
}

// ObserveRetry counts a reconnect retry.
func ObserveRetry(operation string) {
	reconnectRetries.WithLabelValues(operation).Inc()
}

// ObserveGatewayCall counts an outbound gateway call.
func ObserveGatewayCall(operation string, err error) {
	gatewayCalls.WithLabelValues(operation, resultLabel(err)).Inc()
}

// ObserveTask counts a background task completion.
func ObserveTask(task string, err error) {
	backgroundTasks.WithLabelValues(task, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
