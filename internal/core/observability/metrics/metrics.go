package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "racer"

// Registry owns a private prometheus registry and the collectors the
// simulation reports into. Each session process builds one.
type Registry struct {
	reg *prometheus.Registry

	Bus     *BusObserver
	Systems *SystemMetrics
	Race    *RaceMetrics
}

// NewRegistry creates a registry with bus, system and race collectors
// registered. Process and Go runtime collectors are added when withRuntime is set.
func NewRegistry(withRuntime bool) *Registry {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	r := &Registry{
		reg:     reg,
		Bus:     newBusObserver(),
		Systems: newSystemMetrics(),
		Race:    newRaceMetrics(),
	}
	r.Bus.register(reg)
	r.Systems.register(reg)
	r.Race.register(reg)
	return r
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// SystemMetrics records per-system update latency and failures.
type SystemMetrics struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

func newSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "update_duration_seconds",
			Help:      "Time spent in one system update.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		}, []string{"system"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "errors_total",
			Help:      "System updates that returned an error.",
		}, []string{"system"}),
	}
}

func (m *SystemMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.duration, m.errors)
}

// ObserveUpdate satisfies system.Recorder.
func (m *SystemMetrics) ObserveUpdate(name string, took time.Duration, err error) {
	m.duration.WithLabelValues(name).Observe(took.Seconds())
	if err != nil {
		m.errors.WithLabelValues(name).Inc()
	}
}
