package router

import "github.com/prometheus/client_golang/prometheus"

var (
	forwardTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visiond",
			Subsystem: "router",
			Name:      "forward_total",
			Help:      "Requests forwarded to workers by result",
		},
		[]string{"alias", "result"},
	)

	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "visiond",
			Subsystem: "router",
			Name:      "upstream_duration_seconds",
			Help:      "Time from sending a request to a worker until its response headers",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"alias"},
	)

	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visiond",
			Subsystem: "router",
			Name:      "retries_total",
			Help:      "Requests retried against a respawned worker",
		},
		[]string{"alias"},
	)
)

func init() {
	prometheus.MustRegister(forwardTotal, upstreamDuration, retriesTotal)
}
