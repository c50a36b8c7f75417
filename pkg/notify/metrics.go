package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "channeld_broker_state",
		Help: "Broker connection state: 0 disconnected, 1 connecting, 2 connected, 3 degraded.",
	})
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "channeld_events_published_total",
		Help: "Events published to the broker by type.",
	}, []string{"type"})
	bufferedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "channeld_events_buffered_total",
		Help: "Events buffered to the outbox because the broker was unreachable.",
	})
)
