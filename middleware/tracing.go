package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/tenantstore"
)

// tracerName is the instrumentation scope name for tenantstore tracing.
const tracerName = "github.com/xraph/tenantstore"

// Tracing returns middleware that wraps each operation in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: db.system, db.operation, tenantstore.tenant,
// tenantstore.collection and, on failure, tenantstore.error_kind.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, op *Operation, next Handler) error {
		ctx, span := tracer.Start(ctx, "tenantstore."+op.Name,
			trace.WithAttributes(
				attribute.String("db.system", "mongodb"),
				attribute.String("db.operation", op.Name),
				attribute.String("tenantstore.tenant", op.Scope.Tenant),
				attribute.String("tenantstore.collection", op.Scope.Collection),
			),
			trace.WithSpanKind(trace.SpanKindClient),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			if k := tenantstore.KindOf(err); k != 0 {
				span.SetAttributes(attribute.String("tenantstore.error_kind", k.String()))
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
