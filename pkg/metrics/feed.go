package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantfeed",
		Name:      "ingest_lines_total",
		Help:      "Raw lines handed to an ingestor",
	}, []string{"source"})

	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantfeed",
		Name:      "ingest_records_total",
		Help:      "Records produced from data lines",
	}, []string{"source"})

	SkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantfeed",
		Name:      "ingest_skipped_total",
		Help:      "Lines skipped, partitioned by reason",
	}, []string{"source", "reason"}) // row_shape/timestamp/empty_header/repeated_header/other

	SchemaFields = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "quantfeed",
		Name:      "schema_fields",
		Help:      "Field count of the schema discovered for a source",
	}, []string{"source"})

	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantfeed",
		Name:      "fetch_total",
		Help:      "Fetch cycles, partitioned by outcome",
	}, []string{"source", "status"}) // ok/error

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quantfeed",
		Name:      "fetch_duration_seconds",
		Help:      "Fetch cycle latency",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms ~ 20s
	}, []string{"source"})

	PublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantfeed",
		Name:      "publish_errors_total",
		Help:      "Records that could not be published to the broker",
	}, []string{"broker"})

	SinkWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quantfeed",
		Name:      "sink_write_errors_total",
		Help:      "Asynchronous InfluxDB write errors",
	})

	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantfeed",
		Name:      "cycles_total",
		Help:      "Scheduled fetch cycles, partitioned by outcome",
	}, []string{"mode", "status"}) // ok/error/skipped
)
