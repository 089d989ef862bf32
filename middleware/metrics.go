package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/tenantstore"
)

// meterName is the instrumentation scope name for tenantstore metrics.
const meterName = "github.com/xraph/tenantstore"

// Metrics returns middleware that records per-operation metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - tenantstore.operation.duration (Float64Histogram): execution time in
//     seconds, with attributes: op, tenant, status
//   - tenantstore.operation.calls (Int64Counter): total calls, with
//     attributes: op, tenant, status
//
// status is "ok" or the error kind ("connection", "validation",
// "execution"), and "error" for errors of no known kind.
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error, the API returns noop instruments so the middleware
	// degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"tenantstore.operation.duration",
		metric.WithDescription("Duration of store operations in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr

	calls, cErr := meter.Int64Counter(
		"tenantstore.operation.calls",
		metric.WithDescription("Total number of store operations"),
		metric.WithUnit("{call}"),
	)
	_ = cErr

	return func(ctx context.Context, op *Operation, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		attrs := metric.WithAttributes(
			attribute.String("op", op.Name),
			attribute.String("tenant", op.Scope.Tenant),
			attribute.String("status", status(err)),
		)

		duration.Record(ctx, elapsed, attrs)
		calls.Add(ctx, 1, attrs)

		return err
	}
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	if k := tenantstore.KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}
