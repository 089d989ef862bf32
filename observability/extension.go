package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/ext"
	"github.com/xraph/tenantstore/scope"
)

// meterName is the instrumentation scope name for tenantstore metrics.
const meterName = "github.com/xraph/tenantstore/observability"

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.DocumentsInserted = (*MetricsExtension)(nil)
	_ ext.DocumentUpdated   = (*MetricsExtension)(nil)
	_ ext.DocumentsUpdated  = (*MetricsExtension)(nil)
	_ ext.DocumentRemoved   = (*MetricsExtension)(nil)
	_ ext.DocumentsRemoved  = (*MetricsExtension)(nil)
	_ ext.OperationFailed   = (*MetricsExtension)(nil)
)

// MetricsExtension records document lifecycle counters, labelled by tenant.
// Register it as a provider extension to track write volume per tenant and
// failure rates per operation.
type MetricsExtension struct {
	inserted metric.Int64Counter
	updated  metric.Int64Counter
	removed  metric.Int64Counter
	failed   metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Instrument creation errors fall back to noop instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	inserted, _ := meter.Int64Counter("tenantstore.documents.inserted",
		metric.WithDescription("Documents inserted"),
		metric.WithUnit("{document}"))
	updated, _ := meter.Int64Counter("tenantstore.documents.updated",
		metric.WithDescription("Documents modified by updates"),
		metric.WithUnit("{document}"))
	removed, _ := meter.Int64Counter("tenantstore.documents.removed",
		metric.WithDescription("Documents removed"),
		metric.WithUnit("{document}"))
	failed, _ := meter.Int64Counter("tenantstore.operations.failed",
		metric.WithDescription("Provider operations that returned an error"),
		metric.WithUnit("{operation}"))

	return &MetricsExtension{
		inserted: inserted,
		updated:  updated,
		removed:  removed,
		failed:   failed,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func tenantAttr(s scope.Scope) metric.AddOption {
	return metric.WithAttributes(attribute.String("tenant", s.Tenant))
}

// ── Document lifecycle hooks ────────────────────────

// OnDocumentsInserted implements ext.DocumentsInserted.
func (m *MetricsExtension) OnDocumentsInserted(ctx context.Context, s scope.Scope, ids []string) error {
	m.inserted.Add(ctx, int64(len(ids)), tenantAttr(s))
	return nil
}

// OnDocumentUpdated implements ext.DocumentUpdated.
func (m *MetricsExtension) OnDocumentUpdated(ctx context.Context, s scope.Scope, _ tenantstore.Document) error {
	m.updated.Add(ctx, 1, tenantAttr(s))
	return nil
}

// OnDocumentsUpdated implements ext.DocumentsUpdated.
func (m *MetricsExtension) OnDocumentsUpdated(ctx context.Context, s scope.Scope, _, modified int64) error {
	m.updated.Add(ctx, modified, tenantAttr(s))
	return nil
}

// OnDocumentRemoved implements ext.DocumentRemoved.
func (m *MetricsExtension) OnDocumentRemoved(ctx context.Context, s scope.Scope, _ tenantstore.Document) error {
	m.removed.Add(ctx, 1, tenantAttr(s))
	return nil
}

// OnDocumentsRemoved implements ext.DocumentsRemoved.
func (m *MetricsExtension) OnDocumentsRemoved(ctx context.Context, s scope.Scope, deleted int64) error {
	m.removed.Add(ctx, deleted, tenantAttr(s))
	return nil
}

// ── Other hooks ─────────────────────────────────────

// OnOperationFailed implements ext.OperationFailed.
func (m *MetricsExtension) OnOperationFailed(ctx context.Context, op string, s scope.Scope, err error) error {
	kind := "error"
	if k := tenantstore.KindOf(err); k != 0 {
		kind = k.String()
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("tenant", s.Tenant),
		attribute.String("kind", kind),
	))
	return nil
}
