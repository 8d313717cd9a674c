package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "afp_pipeline_steps_total",
		Help: "Pipeline steps executed by step and result",
	}, []string{"step", "result"})

	stepSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "afp_pipeline_step_seconds",
		Help:    "Pipeline step duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"step"})

	warningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "afp_warnings_total",
		Help: "Non-fatal model warnings by code",
	}, []string{"code"})
)
