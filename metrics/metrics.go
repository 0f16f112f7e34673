// Package metrics records file system operations.
//
// The manager always holds an FSMetrics; NewNoop is used when metrics are
// disabled, so recording costs nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type FSMetrics interface {
	// RecordOperation records a completed operation ("create", "open",
	// "remove", ...) with its duration and outcome.
	RecordOperation(operation string, duration time.Duration, err error)

	// SetOpenFiles updates the number of registered descriptors.
	SetOpenFiles(count int)

	// SetFreeSectors updates the free sector count seen by the last
	// operation that loaded the bitmap.
	SetFreeSectors(count uint64)
}

type noop struct{}

func NewNoop() FSMetrics {
	return noop{}
}

func (noop) RecordOperation(string, time.Duration, error) {}
func (noop) SetOpenFiles(int)                              {}
func (noop) SetFreeSectors(uint64)                         {}

type fsMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	openFiles         prometheus.Gauge
	freeSectors       prometheus.Gauge
}

// NewPrometheus registers the file system collectors with reg.
func NewPrometheus(reg prometheus.Registerer) FSMetrics {
	return &fsMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorfs_operations_total",
				Help: "Total number of file system operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sectorfs_operation_duration_seconds",
				Help:    "Duration of file system operations",
				Buckets: prometheus.ExponentialBuckets(0.00001, 10, 6),
			},
			[]string{"operation"},
		),
		openFiles: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "sectorfs_open_files",
				Help: "Number of registered file descriptors",
			},
		),
		freeSectors: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "sectorfs_free_sectors",
				Help: "Free sectors in the persisted bitmap",
			},
		),
	}
}

func (m *fsMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *fsMetrics) SetOpenFiles(count int) {
	m.openFiles.Set(float64(count))
}

func (m *fsMetrics) SetFreeSectors(count uint64) {
	m.freeSectors.Set(float64(count))
}
