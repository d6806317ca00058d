package manager

import (
	"github.com/prometheus/client_golang/prometheus"
)

var eventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "streamd",
		Subsystem: "manager",
		Name:      "events_total",
		Help:      "Manager lifecycle events by name",
	},
	[]string{"event"},
)

func init() {
	prometheus.MustRegister(eventsTotal)
}

// MetricsPublisher counts events in Prometheus and forwards them to next.
type MetricsPublisher struct {
	next EventPublisher
}

// NewMetricsPublisher wraps next; a nil next only counts.
func NewMetricsPublisher(next EventPublisher) *MetricsPublisher {
	if next == nil {
		next = noopPublisher{}
	}
	return &MetricsPublisher{next: next}
}

func (p *MetricsPublisher) Publish(e Event) {
	eventsTotal.WithLabelValues(e.Name).Inc()
	p.next.Publish(e)
}
