// Package observability holds the service-wide Prometheus collectors.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitlog",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity write.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled, labeled by route template, method and status code.",
	}, []string{"route", "method", "code"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fitlog",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of HTTP requests by route template.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"route", "method"})

	statsCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "stats_cache",
		Name:      "lookups_total",
		Help:      "Statistics cache lookups by result (hit, miss, error).",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, httpRequests, httpDuration, statsCacheLookups)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordHTTPRequest counts a finished request and observes its latency.
func RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordCacheLookup counts a statistics cache lookup outcome.
func RecordCacheLookup(result string) {
	statsCacheLookups.WithLabelValues(result).Inc()
}

// CacheLookups exposes the lookup counter for tests.
func CacheLookups(result string) prometheus.Counter {
	return statsCacheLookups.WithLabelValues(result)
}
