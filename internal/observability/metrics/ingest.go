package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics counts ingestion work and its outcomes.
type IngestMetrics struct {
	unitsTotal      *prometheus.CounterVec
	unitDuration    *prometheus.HistogramVec
	recordsTotal    *prometheus.CounterVec
	recordErrors    *prometheus.CounterVec
	lockWaitSeconds prometheus.Histogram

	collectors []prometheus.Collector
}

// NewIngestMetrics creates and registers the ingestion collectors.
func NewIngestMetrics(registry prometheus.Registerer) (*IngestMetrics, error) {
	m := &IngestMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *IngestMetrics) initMetrics() {
	m.unitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visor_ingest_units_total",
			Help: "Files and bundles processed, by kind and batch status",
		},
		[]string{"kind", "status"},
	)
	m.unitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visor_ingest_unit_duration_seconds",
			Help:    "Time taken to ingest one file or bundle",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"kind"},
	)
	m.recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visor_ingest_records_total",
			Help: "Candidate records processed, by outcome",
		},
		[]string{"status"},
	)
	m.recordErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visor_ingest_record_errors_total",
			Help: "Record-level errors by category",
		},
		[]string{"category"},
	)
	m.lockWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "visor_ingest_lock_wait_seconds",
			Help:    "Time spent waiting for an identifier prefix lock",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
		},
	)

	m.collectors = []prometheus.Collector{
		m.unitsTotal, m.unitDuration, m.recordsTotal, m.recordErrors, m.lockWaitSeconds,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordOperation implements Recorder. For OpIngestFile and OpIngestBundle
// the status is the batch status.
func (m *IngestMetrics) RecordOperation(operation, status string) {
	switch operation {
	case OpIngestFile, OpIngestBundle:
		m.unitsTotal.WithLabelValues(operation, status).Inc()
	case OpRecord:
		m.recordsTotal.WithLabelValues(status).Inc()
	}
}

// RecordDuration implements Recorder.
func (m *IngestMetrics) RecordDuration(operation string, seconds float64) {
	switch operation {
	case OpIngestFile, OpIngestBundle:
		m.unitDuration.WithLabelValues(operation).Observe(seconds)
	case OpLockWait:
		m.lockWaitSeconds.Observe(seconds)
	}
}

// RecordError implements Recorder.
func (m *IngestMetrics) RecordError(operation, errorType string) {
	if operation == OpRecord {
		m.recordErrors.WithLabelValues(errorType).Inc()
	}
}
