// Package metrics provides Prometheus metrics for devconsole.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devconsole_cache_refresh_total",
			Help: "Resource cache refreshes by kind and result",
		},
		[]string{"kind", "result"},
	)

	cacheStaleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devconsole_cache_stale_reads_total",
			Help: "Reads that found a stale resource cache entry",
		},
		[]string{"kind"},
	)

	cacheItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "devconsole_cache_items",
			Help: "Number of items held per resource cache kind",
		},
		[]string{"kind"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "devconsole_backend_command_duration_seconds",
			Help:    "Backend command duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command", "result"},
	)

	navigationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devconsole_disk_navigation_total",
			Help: "Disk drill-down transitions by operation and result",
		},
		[]string{"op", "result"},
	)

	diskSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "devconsole_disk_sessions",
			Help: "Number of live disk navigation sessions",
		},
	)
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordCacheRefresh records the outcome of one cache refresh.
func RecordCacheRefresh(kind string, items int, err error) {
	cacheRefreshTotal.WithLabelValues(kind, result(err)).Inc()
	if err == nil {
		cacheItems.WithLabelValues(kind).Set(float64(items))
	}
}

func RecordStaleRead(kind string) {
	cacheStaleTotal.WithLabelValues(kind).Inc()
}

// RecordCommand records a backend command execution.
func RecordCommand(command string, d time.Duration, err error) {
	commandDuration.WithLabelValues(command, result(err)).Observe(d.Seconds())
}

func RecordNavigation(op string, err error) {
	navigationTotal.WithLabelValues(op, result(err)).Inc()
}

func SetDiskSessions(n int) {
	diskSessions.Set(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
