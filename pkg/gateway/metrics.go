package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricTraffic mirrors the per-connection byte counters onto the default
// prometheus registry, partitioned by direction.
var metricTraffic = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "voxhall_gateway_traffic_bytes_total",
	Help: "Bytes moved over the gateway socket, by direction.",
}, []string{"direction"})
