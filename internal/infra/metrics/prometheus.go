package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "diecasting_runs_processed_total",
		Help: "Total number of inspection runs processed, by status",
	}, []string{"status"})

	RunStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "diecasting_run_stage_duration_seconds",
		Help:    "Duration of inspection pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "diecasting_frames_scanned_total",
		Help: "Total number of decoded video frames examined by the selector",
	})

	FramesSelectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "diecasting_frames_selected_total",
		Help: "Total number of frames retained across all runs",
	})

	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "diecasting_classifications_total",
		Help: "Total number of frame classification calls, by outcome",
	}, []string{"outcome"})

	ProductsAggregatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "diecasting_products_aggregated_total",
		Help: "Total number of product records aggregated, by verdict",
	}, []string{"verdict"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "diecasting_active_workers",
		Help: "Number of currently active workers processing runs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "diecasting_retry_total",
		Help: "Total number of run retries",
	}, []string{"attempt"})
)
