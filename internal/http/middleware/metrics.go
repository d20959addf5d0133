// Prometheus instrumentation for HTTP traffic: request counts, latencies,
// in-flight concurrency, and response sizes. Label cardinality stays bounded
// because path is the registered Gin route (/api/v1/searches/:id), not the
// raw URL; the raw path is used only when no route matched, which on this
// router means a 404.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// reqCount counts requests by method, route path, and status code.
	reqCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Count of HTTP requests served.",
		},
		[]string{"method", "path", "status"},
	)

	// reqLatency records request duration in seconds by method and route path.
	// Status is omitted to keep histogram cardinality lower.
	reqLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// reqInflight gauges the number of currently processing requests.
	reqInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Requests currently being served.",
		},
	)

	// respBytes captures response sizes in bytes by method and route path.
	// Buckets are tuned for JSON API payloads; ingest result batches and
	// pending-notification listings can reach the upper buckets.
	respBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "HTTP response body size in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10,
				10 << 10, 25 << 10, 50 << 10,
				100 << 10, 250 << 10, 500 << 10,
				1 << 20, 2 << 20, 5 << 20,
			},
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(reqCount, reqLatency, reqInflight, respBytes)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus:
// http_requests_total per request, http_request_duration_seconds and
// http_response_size_bytes on completion, http_requests_inflight while the
// handler runs. Mount promhttp under /metrics to expose the collectors.
//
// The "path" label uses c.FullPath() to avoid unbounded cardinality from raw
// URLs; unmatched routes (404) fall back to the raw path.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqInflight.Inc()
		defer reqInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		reqCount.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		reqLatency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 { // -1 when nothing was written
			respBytes.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
