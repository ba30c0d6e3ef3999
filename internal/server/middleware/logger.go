package middleware

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// quietPaths are polled by probes and scrapers and are not logged.
var quietPaths = []string{"/health", "/metrics"}

// Logger logs one line per request through zap, with the trace id when
// the request is sampled.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return ginzap.GinzapWithConfig(logger, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  quietPaths,
		Context: func(c *gin.Context) []zapcore.Field {
			var fields []zapcore.Field
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
				fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
			}
			if len(c.Errors) > 0 {
				fields = append(fields, zap.String("errors", c.Errors.String()))
			}
			return fields
		},
	})
}

// Recovery turns panics into a logged 500.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return ginzap.RecoveryWithZap(logger, true)
}
