// Package observability wires the Prometheus collectors together, counts
// categorized errors and exports everything in the node exporter textfile
// format.
package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry   *prometheus.Registry
	errorsSeen *prometheus.CounterVec

	Ingest     *metrics.IngestMetrics
	Simulation *metrics.SimulationMetrics
	Datastore  *metrics.DatastoreMetrics
}

// NewMetrics creates a new instance of Metrics on a private registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	ingestMetrics, err := metrics.NewIngestMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
	}

	simulationMetrics, err := metrics.NewSimulationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	errorsSeen := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visor_errors_total",
			Help: "Categorized errors built anywhere in the application",
		},
		[]string{"component", "category"},
	)
	if err := registry.Register(errorsSeen); err != nil {
		return nil, fmt.Errorf("failed to create error metrics: %w", err)
	}

	return &Metrics{
		registry:   registry,
		errorsSeen: errorsSeen,
		Ingest:     ingestMetrics,
		Simulation: simulationMetrics,
		Datastore:  datastoreMetrics,
	}, nil
}

// Registry exposes the underlying registry as a gatherer.
func (m *Metrics) Registry() prometheus.Gatherer {
	return m.registry
}

// CountErrors registers an error hook that counts every built
// EnhancedError by component and category.
func (m *Metrics) CountErrors() {
	errors.AddErrorHook(func(ee *errors.EnhancedError) {
		m.errorsSeen.WithLabelValues(ee.GetComponent(), ee.GetCategory()).Inc()
	})
}

// ErrorsSeen returns how many errors of component and category were built
// since CountErrors was called.
func (m *Metrics) ErrorsSeen(component, category string) float64 {
	metric := &dto.Metric{}
	if err := m.errorsSeen.WithLabelValues(component, category).Write(metric); err != nil {
		return 0
	}
	if metric.Counter != nil && metric.Counter.Value != nil {
		return *metric.Counter.Value
	}
	return 0
}

// WriteTextFile writes all metrics to path in the textfile collector
// format. The parent directory is created when missing.
func (m *Metrics) WriteTextFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.New(fmt.Errorf("write metrics: %w", err)).
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	return nil
}
