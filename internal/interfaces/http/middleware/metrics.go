package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/healthbudget/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsConfig enables request metrics on a meter provider
type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	Enabled       bool
}

var sizeBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}

type httpMetrics struct {
	requests *telemetry.Counter
	latency  *telemetry.Histogram
	reqSize  *telemetry.Histogram
	respSize *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	in := telemetry.NewInstruments(meter)
	m := &httpMetrics{
		requests: in.Counter("http_server_request_total", "HTTP requests by route and status", "{request}"),
		latency:  in.Histogram("http_server_request_duration_seconds", "HTTP request latency", "s", telemetry.HTTPDurationBuckets...),
		reqSize:  in.Histogram("http_server_request_size_bytes", "HTTP request body size", "By", sizeBuckets...),
		respSize: in.Histogram("http_server_response_size_bytes", "HTTP response body size", "By", sizeBuckets...),
		inFlight: in.UpDown("http_server_active_requests", "HTTP requests being served", "{request}"),
	}
	return m, in.Err()
}

// HTTPMetrics records request count, latency, body sizes and in-flight
// requests per method and route pattern. It passes through when the
// provider is missing or disabled.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), true)
}

// HTTPMetricsWithMeter is HTTPMetrics on an existing meter
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	m, err := newHTTPMetrics(meter)
	if err != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		m.inFlight.Add(ctx, 1)
		c.Next()
		m.inFlight.Add(ctx, -1)

		// the matched pattern, e.g. /api/v1/plans/:id, keeps ids out of labels
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		labels := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}
		m.requests.Inc(ctx, append(labels, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)

		m.latency.Since(ctx, start, labels...)
		if n := c.Request.ContentLength; n > 0 {
			m.reqSize.Record(ctx, float64(n), labels...)
		}
		if n := c.Writer.Size(); n > 0 {
			m.respSize.Record(ctx, float64(n), labels...)
		}
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}
