package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulationMetrics tracks simulation cache rebuilds.
type SimulationMetrics struct {
	recordsTotal     *prometheus.CounterVec
	recordDuration   prometheus.Histogram
	filterSetSeconds *prometheus.HistogramVec
	pairingCache     *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewSimulationMetrics creates and registers the simulation collectors.
func NewSimulationMetrics(registry prometheus.Registerer) (*SimulationMetrics, error) {
	m := &SimulationMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SimulationMetrics) initMetrics() {
	m.recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visor_simulation_records_total",
			Help: "Records whose simulation cache was rebuilt, by status",
		},
		[]string{"status"},
	)
	m.recordDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "visor_simulation_record_duration_seconds",
			Help:    "Time taken to rebuild one record's simulation cache",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount15),
		},
	)
	m.filterSetSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visor_simulation_filterset_duration_seconds",
			Help:    "Time taken to simulate one record through one filter set",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
		},
		[]string{"filter_set"},
	)
	m.pairingCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visor_simulation_pairing_cache_total",
			Help: "Virtual filter pairing cache lookups, by result",
		},
		[]string{"result"},
	)
	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visor_simulation_errors_total",
			Help: "Simulation failures by type",
		},
		[]string{"operation", "error_type"},
	)

	m.collectors = []prometheus.Collector{
		m.recordsTotal, m.recordDuration, m.filterSetSeconds, m.pairingCache, m.errorsTotal,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *SimulationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *SimulationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordOperation implements Recorder.
func (m *SimulationMetrics) RecordOperation(operation, status string) {
	switch operation {
	case OpSimulateRecord:
		m.recordsTotal.WithLabelValues(status).Inc()
	case OpPairingCache:
		m.pairingCache.WithLabelValues(status).Inc()
	}
}

// RecordDuration implements Recorder. Per filter set durations use the
// operation form "simulate_filterset:<short name>".
func (m *SimulationMetrics) RecordDuration(operation string, seconds float64) {
	op, filterSet := splitOperation(operation)
	switch op {
	case OpSimulateRecord:
		m.recordDuration.Observe(seconds)
	case OpSimulateFilterSet:
		m.filterSetSeconds.WithLabelValues(filterSet).Observe(seconds)
	}
}

// RecordError implements Recorder.
func (m *SimulationMetrics) RecordError(operation, errorType string) {
	op, _ := splitOperation(operation)
	m.errorsTotal.WithLabelValues(op, errorType).Inc()
}
