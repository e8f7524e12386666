package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the lifecycle engine. Registered on the
// default registry; cmd/voxcat serves it via promhttp when metrics are
// enabled.
var (
	metricConnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxhall_connect_attempts_total",
		Help: "Connect attempts started.",
	})

	metricDisconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxhall_disconnects_total",
		Help: "Disconnects, partitioned by whether they were unexpected.",
	}, []string{"unexpected"})

	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxhall_gateway_events_total",
		Help: "Inbound gateway events applied, by event type.",
	}, []string{"type"})

	metricSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxhall_message_sends_total",
		Help: "Outbound message outcomes: success, confirmed, rejected, deferred.",
	}, []string{"outcome"})

	metricQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxhall_send_queue_depth",
		Help: "Messages currently waiting in the outbound queue.",
	})
)
