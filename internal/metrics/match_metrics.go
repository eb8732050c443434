package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MatchMetricsCollector tracks live matches, simulation ticks, player
// commands and captures.
type MatchMetricsCollector struct {
	live         prometheus.Gauge
	finished     *prometheus.CounterVec
	tickDuration prometheus.Histogram
	commands     *prometheus.CounterVec
	captures     prometheus.Counter
	spectators   prometheus.Gauge
}

func NewMatchMetricsCollector() *MatchMetricsCollector {
	const subsystem = "match"
	return &MatchMetricsCollector{
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "live",
			Help:      "Matches currently running",
		}),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "finished_total",
				Help:      "Matches finished by status",
			},
			[]string{"status"},
		),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent stepping one match tick",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "commands_total",
				Help:      "Player commands by type and result",
			},
			[]string{"type", "result"},
		),
		captures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "captures_total",
			Help:      "Constructs that changed owner",
		}),
		spectators: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "spectators",
			Help:      "Connected websocket spectators",
		}),
	}
}

// Register registers all match metrics with the Prometheus registry.
func (c *MatchMetricsCollector) Register() error {
	return register(c.live, c.finished, c.tickDuration, c.commands, c.captures, c.spectators)
}

func (c *MatchMetricsCollector) MatchStarted() { c.live.Inc() }

func (c *MatchMetricsCollector) MatchEnded(status string) {
	c.live.Dec()
	c.finished.WithLabelValues(status).Inc()
}

func (c *MatchMetricsCollector) ObserveTick(d time.Duration) { c.tickDuration.Observe(d.Seconds()) }

func (c *MatchMetricsCollector) RecordCommand(typ string, accepted bool) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	c.commands.WithLabelValues(typ, result).Inc()
}

func (c *MatchMetricsCollector) RecordCapture() { c.captures.Inc() }

func (c *MatchMetricsCollector) SpectatorConnected()    { c.spectators.Inc() }
func (c *MatchMetricsCollector) SpectatorDisconnected() { c.spectators.Dec() }
