// Package metrics defines the Prometheus instruments shared by the
// realtime components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the instruments for the realtime gateway.
type Metrics struct {
	// ActiveSessions is the number of open sessions per sub-channel.
	ActiveSessions *prometheus.GaugeVec

	// BroadcastsTotal counts frames published to the backplane.
	BroadcastsTotal prometheus.Counter

	// RejectedFramesTotal counts inbound frames refused per sub-channel.
	RejectedFramesTotal *prometheus.CounterVec

	// StoreFailuresTotal counts failed writes to the shared state store.
	StoreFailuresTotal prometheus.Counter

	// CountdownsStartedTotal counts countdown drivers launched.
	CountdownsStartedTotal prometheus.Counter
}

// New registers the gateway instruments on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "royale",
			Subsystem: "gateway",
			Name:      "active_sessions",
			Help:      "Number of open WebSocket sessions by sub-channel",
		}, []string{"channel"}),

		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "royale",
			Subsystem: "gateway",
			Name:      "broadcasts_total",
			Help:      "Total frames published to the broadcast backplane",
		}),

		RejectedFramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "royale",
			Subsystem: "gateway",
			Name:      "rejected_frames_total",
			Help:      "Total inbound frames rejected by validation, by sub-channel",
		}, []string{"channel"}),

		StoreFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "royale",
			Subsystem: "gateway",
			Name:      "store_failures_total",
			Help:      "Total failed writes to the shared countdown store",
		}),

		CountdownsStartedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "royale",
			Subsystem: "gateway",
			Name:      "countdowns_started_total",
			Help:      "Total countdown drivers started",
		}),
	}
}
