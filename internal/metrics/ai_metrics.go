package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/freeeve/minimalists/api/internal/bot"
)

// AIMetricsCollector counts AI decisions. It implements bot.DecisionRecorder.
type AIMetricsCollector struct {
	decisions *prometheus.CounterVec
}

func NewAIMetricsCollector() *AIMetricsCollector {
	return &AIMetricsCollector{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ai",
				Name:      "decisions_total",
				Help:      "AI decisions by policy, action kind and outcome",
			},
			[]string{"policy", "kind", "result"},
		),
	}
}

// Register registers the AI metrics with the Prometheus registry.
func (c *AIMetricsCollector) Register() error {
	return register(c.decisions)
}

func (c *AIMetricsCollector) RecordDecision(policy string, kind bot.ActionKind, accepted bool) {
	result := "declined"
	switch {
	case kind == "":
		kind, result = "none", "idle"
	case accepted:
		result = "accepted"
	}
	c.decisions.WithLabelValues(policy, string(kind), result).Inc()
}
