package monitor

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TasksStartedCount   prometheus.Counter
	TasksCompletedCount prometheus.Counter
	TasksFailedCount    prometheus.Counter
	TasksRunningGauge   prometheus.Gauge
	EpochDuration       prometheus.Histogram
	PruningEventsCount  prometheus.Counter
)

// InitPrometheus initializes the broker metrics with a given server name.
func InitPrometheus(serverName string) {
	if serverName == "" {
		panic("server name must be provided")
	}

	TasksStartedCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "srp_tasks_started_total",
			Help:        "Total number of training tasks started",
			ConstLabels: prometheus.Labels{"server": serverName},
		})

	TasksCompletedCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "srp_tasks_completed_total",
			Help:        "Total number of training tasks completed",
			ConstLabels: prometheus.Labels{"server": serverName},
		})

	TasksFailedCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "srp_tasks_failed_total",
			Help:        "Total number of training tasks failed",
			ConstLabels: prometheus.Labels{"server": serverName},
		})

	TasksRunningGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "srp_tasks_running",
			Help:        "Number of training tasks currently running",
			ConstLabels: prometheus.Labels{"server": serverName},
		})

	EpochDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "srp_epoch_duration_seconds",
			Help:        "Wall time of one training epoch",
			ConstLabels: prometheus.Labels{"server": serverName},
			Buckets:     prometheus.ExponentialBuckets(30, 2, 10),
		})

	PruningEventsCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "srp_pruning_events_total",
			Help:        "Total number of pruning events applied",
			ConstLabels: prometheus.Labels{"server": serverName},
		})

	prometheus.MustRegister(
		TasksStartedCount,
		TasksCompletedCount,
		TasksFailedCount,
		TasksRunningGauge,
		EpochDuration,
		PruningEventsCount,
	)
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
