package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	budgetGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "visiond",
		Subsystem: "orchestrator",
		Name:      "memory_budget_mb",
		Help:      "Configured memory budget in MB",
	})

	capacityGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "visiond",
		Subsystem: "orchestrator",
		Name:      "memory_capacity_mb",
		Help:      "Memory available to workers (budget minus margin) in MB",
	})

	reservedGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "visiond",
			Subsystem: "orchestrator",
			Name:      "memory_reserved_mb",
			Help:      "Memory reserved by workers in MB, split into used and releasing",
		},
		[]string{"kind"},
	)

	instancesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "visiond",
			Subsystem: "orchestrator",
			Name:      "instances",
			Help:      "Worker instances by lifecycle state",
		},
		[]string{"state"},
	)

	spawnResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visiond",
			Subsystem: "orchestrator",
			Name:      "spawns_total",
			Help:      "Worker spawns by outcome",
		},
		[]string{"alias", "result"},
	)

	evictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visiond",
			Subsystem: "orchestrator",
			Name:      "evictions_total",
			Help:      "Worker evictions by reason",
		},
		[]string{"alias", "reason"},
	)

	admissionRefusals = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "visiond",
		Subsystem: "orchestrator",
		Name:      "admission_refusals_total",
		Help:      "Acquire calls refused for lack of memory",
	})

	coldStartSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "visiond",
			Subsystem: "orchestrator",
			Name:      "cold_start_seconds",
			Help:      "Time from admission to a healthy worker",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"alias"},
	)
)

func init() {
	prometheus.MustRegister(budgetGauge, capacityGauge, reservedGauge, instancesGauge,
		spawnResults, evictions, admissionRefusals, coldStartSeconds)
}

var allStates = []State{StateStarting, StateReady, StateServing, StateIdle, StateEvicting}

// observeLocked refreshes the gauges from the registry.
func (o *Orchestrator) observeLocked() {
	reservedGauge.WithLabelValues("used").Set(float64(o.acct.Used()))
	reservedGauge.WithLabelValues("releasing").Set(float64(o.acct.Releasing()))
	counts := make(map[State]int, len(allStates))
	for _, inst := range o.instances {
		counts[inst.State]++
	}
	for _, s := range allStates {
		instancesGauge.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
