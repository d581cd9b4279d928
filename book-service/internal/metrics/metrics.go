// Package metrics exposes Prometheus counters for the HTTP boundary and the
// catalog error categories.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	CatalogErrors       *prometheus.CounterVec
	TokensIssued        prometheus.Counter
	TokenThrottled      prometheus.Counter
}

// NewMetrics registers all collectors on reg. Metric names are prefixed with
// namespace (e.g. "catalog_http_requests_total").
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		CatalogErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_errors_total",
			Help:      "Failed catalog requests by error category",
		}, []string{"category"}),
		TokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Access tokens issued",
		}),
		TokenThrottled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_requests_throttled_total",
			Help:      "Token requests rejected by the rate limiter",
		}),
	}
}

// Middleware records count and latency per route pattern. Unmatched routes
// are grouped under "unmatched" to keep label cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := ctx.Request.Method
		m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(ctx.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) CatalogError(category string) {
	m.CatalogErrors.WithLabelValues(category).Inc()
}
