package middleware

import (
	"time"

	"pravachan-index/internal/telemetry"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// TracingMiddleware provides OpenTelemetry tracing for Gin
func TracingMiddleware() gin.HandlerFunc {
	return otelgin.Middleware("pravachan-index")
}

// MetricsMiddleware records request metrics
func MetricsMiddleware(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()
		statusStr := "success"
		if status >= 400 {
			statusStr = "error"
		}

		metrics.RecordRequest(
			c.Request.Method,
			c.Request.URL.Path,
			statusStr,
			duration,
		)
	}
}

// ManualTracing provides manual tracing utilities
func ManualTracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		tracer := otel.Tracer("pravachan-index")

		ctx, span := tracer.Start(ctx, "http.request")
		defer span.End()

		requestID := GetRequestID(c)
		if requestID == "" {
			requestID = generateRequestID()
		}
		span.SetAttributes(attribute.String("request.id", requestID))

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
