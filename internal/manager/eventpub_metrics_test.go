package manager

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsPublisherCountsAndForwards(t *testing.T) {
	mem := NewMemoryPublisher()
	p := NewMetricsPublisher(mem)
	before := testutil.ToFloat64(eventsTotal.WithLabelValues("load_done"))
	p.Publish(Event{Name: "load_done", ModelID: "m"})
	if got := testutil.ToFloat64(eventsTotal.WithLabelValues("load_done")); got != before+1 {
		t.Fatalf("events_total=%v want %v", got, before+1)
	}
	if names := mem.Names(); len(names) != 1 || names[0] != "load_done" {
		t.Fatalf("forwarded=%v", names)
	}
	NewMetricsPublisher(nil).Publish(Event{Name: "unload_done"})
}
