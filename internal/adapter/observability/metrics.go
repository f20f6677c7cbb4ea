// Package observability provides logging, metrics, and tracing for the
// Store, Producer, and Worker scheduler.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TasksEnqueuedTotal counts successful Enqueue calls.
	TasksEnqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tasks_enqueued_total",
		Help: "Total number of tasks enqueued",
	})
	// TasksReservedTotal counts rows returned by Reserve.
	TasksReservedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tasks_reserved_total",
		Help: "Total number of tasks reserved by workers",
	})
	// TasksCompletedTotal counts terminal transitions by status.
	TasksCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_completed_total",
		Help: "Total number of tasks reaching a terminal state",
	}, []string{"status"})
	// StoreOperationDuration records Store method latency.
	StoreOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_operation_duration_seconds",
		Help:    "Store operation duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"op"})
	// WorkerInFlight is a gauge of dispatches currently executing, keyed
	// by worker id.
	WorkerInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "worker_in_flight",
		Help: "Number of dispatches currently executing per worker",
	}, []string{"worker_id"})
	// PermitWaitDuration records time spent acquiring a concurrency
	// permit before a dispatch starts.
	PermitWaitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "permit_wait_duration_seconds",
		Help:    "Time spent waiting for a concurrency permit",
		Buckets: []float64{0, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"worker_id"})

	registerOnce sync.Once
)

// InitMetrics registers all collectors with the default Prometheus
// registry. Safe to call more than once; registration runs exactly once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			TasksEnqueuedTotal,
			TasksReservedTotal,
			TasksCompletedTotal,
			StoreOperationDuration,
			WorkerInFlight,
			PermitWaitDuration,
		)
	})
}
