package interaction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pbd_state_transitions_total",
		Help: "Interaction machine state transitions",
	}, []string{"from", "to"})

	metricStepsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pbd_steps_recorded_total",
		Help: "Steps appended to actions",
	})

	metricExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pbd_executions_total",
		Help: "Action executions by result",
	}, []string{"result"})

	metricStepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pbd_step_duration_ms",
		Help:    "Time to execute a single step",
		Buckets: prometheus.ExponentialBuckets(10, 1.8, 12),
	})
)
