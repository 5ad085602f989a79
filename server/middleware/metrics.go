package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// NewMetrics creates middleware that records the number of admin requests
// and their latency, labelled by route and status.
func NewMetrics(registry *prometheus.Registry) gin.HandlerFunc {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fanout",
			Subsystem: "admin",
			Name:      "http_requests_total",
			Help:      "Admin HTTP requests.",
		},
		[]string{"route", "status"},
	)
	requestLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fanout",
			Subsystem: "admin",
			Name:      "http_request_latency_seconds",
			Help:      "Admin HTTP request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"route", "status"},
	)

	registry.MustRegister(requests)
	registry.MustRegister(requestLatency)

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Use the matched route rather than the path to bound cardinality.
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		labels := prometheus.Labels{
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		requests.With(labels).Inc()
		requestLatency.With(labels).Observe(time.Since(start).Seconds())
	}
}
