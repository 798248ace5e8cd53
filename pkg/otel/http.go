package otel

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	httpServerDuration     metric.Float64Histogram
	httpServerResponseSize metric.Int64Histogram
)

// InitHTTPMetrics 初始化 HTTP 指标
func InitHTTPMetrics(meter metric.Meter) error {
	var err error

	httpServerDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP server request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	httpServerResponseSize, err = meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("HTTP server response size"),
		metric.WithUnit("By"),
	)
	return err
}

// GinMiddleware Gin 的 HTTP 追踪中间件
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		propagator := GetTextMapPropagator()
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := Tracer().Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Request.Method),
				semconv.HTTPRouteKey.String(route),
				attribute.String("http.user_agent", c.Request.UserAgent()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		// 在写出响应前注入，c.Next() 之后 header 已发送
		propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		statusCode := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(statusCode))

		attrs := metric.WithAttributes(
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCodeKey.Int(statusCode),
		)
		if httpServerDuration != nil {
			httpServerDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
		}
		if httpServerResponseSize != nil {
			httpServerResponseSize.Record(ctx, int64(c.Writer.Size()), attrs)
		}

		if statusCode >= 500 {
			span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(statusCode))
		}
	}
}
