package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for record store operations
type DatastoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	fileOpsTotal      *prometheus.CounterVec
	copiedBytes       prometheus.Histogram
	errorsTotal       *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry prometheus.Registerer) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthdb_store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthdb_store_operation_duration_seconds",
			Help:    "Time taken for store operations, including file side effects",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount15),
		},
		[]string{"operation"},
	)

	m.fileOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthdb_attachment_file_operations_total",
			Help: "Attachment file copies and removals",
		},
		[]string{"action", "status"},
	)

	m.copiedBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthdb_attachment_copied_bytes",
			Help:    "Size of attachment files copied into the store",
			Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount10),
		},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthdb_errors_total",
			Help: "Categorized errors raised by any component",
		},
		[]string{"component", "category"},
	)

	m.collectors = []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.fileOpsTotal,
		m.copiedBytes,
		m.errorsTotal,
	}
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordOperation records one store operation outcome and its duration
func (m *DatastoreMetrics) RecordOperation(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordFileOperation records an attachment file copy or removal
func (m *DatastoreMetrics) RecordFileOperation(action, status string) {
	if m == nil {
		return
	}
	m.fileOpsTotal.WithLabelValues(action, status).Inc()
}

// RecordCopiedBytes records the size of a copied attachment
func (m *DatastoreMetrics) RecordCopiedBytes(n int64) {
	if m == nil {
		return
	}
	m.copiedBytes.Observe(float64(n))
}

// RecordError counts a categorized error
func (m *DatastoreMetrics) RecordError(component, category string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(component, category).Inc()
}
