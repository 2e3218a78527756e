package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pbd_commands_total",
		Help: "Commands processed by command and outcome",
	}, []string{"command", "status"})

	metricQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pbd_command_queue_depth",
		Help: "Commands waiting behind the one in progress",
	})

	metricCommandLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pbd_command_latency_ms",
		Help:    "Time from submission to outcome",
		Buckets: prometheus.ExponentialBuckets(1, 2.5, 12),
	})
)
