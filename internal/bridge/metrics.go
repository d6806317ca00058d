package bridge

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamd",
		Subsystem: "bridge",
		Name:      "sessions_active",
		Help:      "Generation sessions currently streaming",
	})

	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamd",
			Subsystem: "bridge",
			Name:      "sessions_total",
			Help:      "Finished generation sessions by outcome",
		},
		[]string{"backend", "outcome"},
	)

	fragmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamd",
		Subsystem: "bridge",
		Name:      "fragments_total",
		Help:      "Fragments pushed by producers",
	})

	queueFullTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamd",
		Subsystem: "bridge",
		Name:      "queue_full_total",
		Help:      "Times a producer blocked on a full queue",
	})

	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "streamd",
			Subsystem: "bridge",
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of generation sessions",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(sessionsActive, sessionsTotal, fragmentsTotal, queueFullTotal, sessionDuration)
}
