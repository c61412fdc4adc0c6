// Package observability wires metric collectors and exports them.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
	"github.com/AlanZ-Git/HealthDatabase/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Datastore *metrics.DatastoreMetrics
}

// NewMetrics creates a registry with all collectors. Every categorized error
// built afterwards is counted by component and category.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore metrics: %w", err)
	}

	m := &Metrics{
		registry:  registry,
		Datastore: datastoreMetrics,
	}

	errors.AddErrorHook(func(ee *errors.EnhancedError) {
		datastoreMetrics.RecordError(ee.GetComponent(), ee.GetCategory())
	})

	return m, nil
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in the text exposition format to path,
// for pickup by the node exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.New(fmt.Errorf("failed to write metrics textfile: %w", err)).
			Component("observability").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	return nil
}
