package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for extraction runs
type Metrics struct {
	containersTotal      prometheus.Counter
	constructionFailures prometheus.Counter
	recordsScanned       prometheus.Counter
	recordsMatched       prometheus.Counter
	rowsInserted         prometheus.Counter
	runDuration          *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		containersTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapshotetl_containers_processed_total",
			Help: "Total number of containers drained",
		}),
		constructionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapshotetl_container_construction_failures_total",
			Help: "Total number of containers that could not be opened or mapped",
		}),
		recordsScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapshotetl_records_scanned_total",
			Help: "Total number of records read from containers",
		}),
		recordsMatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapshotetl_records_matched_total",
			Help: "Total number of records accepted by the owner filter",
		}),
		rowsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapshotetl_rows_inserted_total",
			Help: "Total number of rows added to the destination",
		}),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snapshotetl_run_duration_seconds",
				Help:    "Extraction run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"status"},
		),
	}
}
