package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the broker's prometheus collectors
type Metrics struct {
	Sessions  prometheus.Gauge
	Rooms     prometheus.Gauge
	Published *prometheus.CounterVec
	Delivered prometheus.Counter
	Dropped   prometheus.Counter
}

// NewMetrics creates the broker collectors and registers them with reg.
// A nil registerer leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "projecthub_realtime_sessions",
			Help: "Number of connected realtime sessions",
		}),
		Rooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "projecthub_realtime_rooms",
			Help: "Number of rooms with at least one subscriber",
		}),
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "projecthub_realtime_published_total",
			Help: "Messages published by type",
		}, []string{"type"}),
		Delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "projecthub_realtime_delivered_total",
			Help: "Messages enqueued to sessions",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "projecthub_realtime_dropped_total",
			Help: "Messages dropped because a session queue was full",
		}),
	}
}
