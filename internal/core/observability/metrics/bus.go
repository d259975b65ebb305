package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/racer/internal/core/events/bus"
)

var _ bus.EventBusObserver = (*BusObserver)(nil)

// BusObserver exports event bus activity. Attach it with EventBus.AddObserver.
type BusObserver struct {
	published *prometheus.CounterVec
	delivered *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   prometheus.Histogram
}

func newBusObserver() *BusObserver {
	return &BusObserver{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Events published, by type.",
		}, []string{"type"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "deliveries_total",
			Help:      "Handler invocations, by event type.",
		}, []string{"type"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "handler_errors_total",
			Help:      "Publishes where at least one handler failed.",
		}, []string{"type"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "delivery_seconds",
			Help:      "Synchronous delivery time of one publish.",
			Buckets:   []float64{.000005, .00001, .00005, .0001, .0005, .001, .005},
		}),
	}
}

func (o *BusObserver) register(reg prometheus.Registerer) {
	reg.MustRegister(o.published, o.delivered, o.errors, o.latency)
}

func (o *BusObserver) OnPublish(eventType string, _ bus.Event) {
	o.published.WithLabelValues(eventType).Inc()
}

func (o *BusObserver) OnDelivered(eventType string, handlers int, err error, durationMicros int64) {
	o.delivered.WithLabelValues(eventType).Add(float64(handlers))
	if err != nil {
		o.errors.WithLabelValues(eventType).Inc()
	}
	o.latency.Observe(float64(durationMicros) / 1e6)
}
