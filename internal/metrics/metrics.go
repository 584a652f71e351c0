// Package metrics holds the gateway's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// QuotaDecisions counts ledger outcomes: allowed, denied, error.
	QuotaDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_quota_decisions_total",
			Help: "Quota ledger decisions by outcome",
		},
		[]string{"outcome"},
	)

	// UsageRecordFailures counts usage rows that could not be written.
	UsageRecordFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_usage_record_failures_total",
			Help: "Usage log rows dropped after a write failure",
		},
	)

	// IntegrationOutcomes counts upstream calls by integration and result.
	IntegrationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_integration_outcomes_total",
			Help: "Upstream integration calls by result (ok or degraded)",
		},
		[]string{"integration", "result"},
	)

	// BurstRejections counts requests refused by the per-IP limiter.
	BurstRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_burst_rejections_total",
			Help: "Requests rejected by the per-IP burst limiter",
		},
	)
)

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
