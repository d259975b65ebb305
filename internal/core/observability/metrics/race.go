package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/racer/internal/core/events/bus"
	"github.com/zeusync/racer/internal/race/events"
)

// RaceMetrics mirrors race notifications into gauges and counters.
type RaceMetrics struct {
	fuel        prometheus.Gauge
	score       prometheus.Gauge
	checkpoints prometheus.Counter
	respawns    prometheus.Counter
	finishes    prometheus.Counter
	raceTime    prometheus.Histogram
	surfaces    *prometheus.CounterVec
}

func newRaceMetrics() *RaceMetrics {
	return &RaceMetrics{
		fuel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "race", Name: "fuel",
			Help: "Current fuel level.",
		}),
		score: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "race", Name: "score",
			Help: "Checkpoints collected in the current race.",
		}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "race", Name: "checkpoints_total",
			Help: "Checkpoints passed.",
		}),
		respawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "race", Name: "respawns_total",
			Help: "Resets to the last checkpoint.",
		}),
		finishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "race", Name: "finishes_total",
			Help: "Races completed.",
		}),
		raceTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "race", Name: "duration_seconds",
			Help:    "Race clock at the finish line.",
			Buckets: prometheus.LinearBuckets(30, 30, 10),
		}),
		surfaces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "race", Name: "surface_changes_total",
			Help: "Surface transitions, by new material.",
		}, []string{"material"}),
	}
}

func (m *RaceMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.fuel, m.score, m.checkpoints, m.respawns, m.finishes, m.raceTime, m.surfaces)
}

// Bind subscribes the collectors to race topics. Pass a bus.Scope to tie the
// subscriptions to a session.
func (m *RaceMetrics) Bind(s bus.Subscriber) error {
	binds := []func() (bus.Subscription, error){
		func() (bus.Subscription, error) {
			return bus.SubscribeTyped(s, events.FuelUpdated, func(p events.Fuel) error {
				m.fuel.Set(p.Fuel)
				return nil
			})
		},
		func() (bus.Subscription, error) {
			return bus.SubscribeTyped(s, events.ScoreUpdated, func(p events.Score) error {
				m.score.Set(float64(p.Score))
				return nil
			})
		},
		func() (bus.Subscription, error) {
			return bus.SubscribeTyped(s, events.CheckpointPassed, func(events.Checkpoint) error {
				m.checkpoints.Inc()
				return nil
			})
		},
		func() (bus.Subscription, error) {
			return s.Subscribe(events.CheckpointLoad, func(bus.Event) error {
				m.respawns.Inc()
				return nil
			})
		},
		func() (bus.Subscription, error) {
			return bus.SubscribeTyped(s, events.RaceFinish, func(p events.Finish) error {
				m.finishes.Inc()
				m.raceTime.Observe(p.Elapsed)
				return nil
			})
		},
		func() (bus.Subscription, error) {
			return bus.SubscribeTyped(s, events.SurfaceChanged, func(p events.Surface) error {
				m.surfaces.WithLabelValues(p.Material).Inc()
				return nil
			})
		},
	}
	for _, bind := range binds {
		if _, err := bind(); err != nil {
			return err
		}
	}
	return nil
}
