package utils

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var noopTracer trace.Tracer = noop.Tracer{}

// OpenTelemetryTracerFromContext returns the tracer stored by the server or worker setup. Code run
// outside of them (tests, one-off commands) gets a noop tracer.
func OpenTelemetryTracerFromContext(ctx context.Context) trace.Tracer {
	if tracer, ok := ctx.Value(ContextKeyOpenTelemetryTracer).(trace.Tracer); ok {
		return tracer
	}
	return noopTracer
}

func StoreOpenTelemetryTracerInContext(ctx context.Context, tracer trace.Tracer) context.Context {
	return context.WithValue(ctx, ContextKeyOpenTelemetryTracer, tracer)
}

func StoreOpenTelemetryTracerInContextMiddleware(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(StoreOpenTelemetryTracerInContext(c.Request.Context(), tracer))
		c.Next()
	}
}

// StartSpan starts a child span with the tracer of the context. The caller ends the span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return OpenTelemetryTracerFromContext(ctx).Start(ctx, name, trace.WithAttributes(attrs...))
}
