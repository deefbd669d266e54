package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videocounter_frames_processed_total",
		Help: "Total number of sampled frames fed to the presence tracker",
	})

	ClassifierFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videocounter_classifier_failures_total",
		Help: "Frames whose classification failed and passed through unannotated",
	})

	DeparturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videocounter_departures_total",
		Help: "Departure events counted, by class",
	}, []string{"class"})

	ObjectCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "videocounter_object_count",
		Help: "Current persisted count per tracked class",
	}, []string{"class"})

	PersistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videocounter_persist_failures_total",
		Help: "Count store writes that failed and were logged",
	})

	RejectedFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videocounter_rejected_frames_total",
		Help: "Frames rejected because their index did not increase",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videocounter_runs_total",
		Help: "Analysis runs, by final status",
	}, []string{"status"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "videocounter_run_stage_duration_seconds",
		Help:    "Duration of analysis stages",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "videocounter_active_runs",
		Help: "Number of analysis runs in progress",
	})
)
