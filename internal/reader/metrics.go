package reader

import "github.com/prometheus/client_golang/prometheus"

var (
	readsEnqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "asyncread_reads_enqueued_total",
		Help: "Total number of read requests enqueued.",
	})

	readsFulfilledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "asyncread_reads_fulfilled_total",
		Help: "Total number of read requests fulfilled by the worker.",
	})

	readsAbandonedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asyncread_reads_abandoned_total",
			Help: "Total number of read requests left in the queue when the worker exited.",
		},
		[]string{"outcome"},
	)

	readServiceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "asyncread_read_service_seconds",
		Help:    "Time from enqueue to fulfilment of a read request.",
		Buckets: prometheus.DefBuckets,
	})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "asyncread_queue_depth",
		Help: "Number of read requests waiting in the queue.",
	})
)

// Abandonment outcomes.
const (
	outcomePending  = "pending"
	outcomeRejected = "rejected"
)

func init() {
	prometheus.MustRegister(readsEnqueuedTotal)
	prometheus.MustRegister(readsFulfilledTotal)
	prometheus.MustRegister(readsAbandonedTotal)
	prometheus.MustRegister(readServiceDuration)
	prometheus.MustRegister(queueDepth)
}
