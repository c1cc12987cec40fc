package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionEvents   *prometheus.CounterVec
	WSMessages      *prometheus.CounterVec
	TransportErrors *prometheus.CounterVec

	RoutingDecisions *prometheus.CounterVec
	EstimatedCost    prometheus.Counter
	ResponseCancels  *prometheus.CounterVec

	ToolDispatches *prometheus.CounterVec
	ToolDenied     *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active realtime voice sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "UI websocket messages by direction and type.",
		}, []string{"direction", "type"}),
		TransportErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Realtime transport errors by stage and code.",
		}, []string{"stage", "code"}),
		RoutingDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Utterance routing decisions by tier.",
		}, []string{"tier"}),
		EstimatedCost: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimated_cost_cents_total",
			Help:      "Estimated remote completion cost in cents (metering only).",
		}),
		ResponseCancels: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_cancels_total",
			Help:      "Remote response cancellations by reason.",
		}, []string{"reason"}),
		ToolDispatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_dispatches_total",
			Help:      "Tool calls dispatched by name and outcome.",
		}, []string{"tool", "outcome"}),
		ToolDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_denied_total",
			Help:      "Gated tool calls rejected by authorization, by tool.",
		}, []string{"tool"}),
	}
}

// ObserveRouting records one routing decision and its estimated cost in cents.
func (m *Metrics) ObserveRouting(tier string, costCents float64) {
	m.RoutingDecisions.WithLabelValues(tier).Inc()
	if costCents > 0 {
		m.EstimatedCost.Add(costCents)
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
