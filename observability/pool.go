package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/tenantstore/pool"
)

var (
	stateIdle   = attribute.String("state", "idle")
	stateLeased = attribute.String("state", "leased")
)

// StatsSource is implemented by *pool.Pool.
type StatsSource interface {
	Stats() pool.Stats
}

// RegisterPoolMetrics exports connection pool state as observable
// instruments:
//
//   - tenantstore.pool.connections (gauge), with attribute state
//     ("idle" or "leased")
//   - tenantstore.pool.max (gauge)
//   - tenantstore.pool.waiting (gauge): Acquire calls blocked on a slot
//   - tenantstore.pool.dialed / tenantstore.pool.destroyed (counters)
//
// Unregister the returned registration when the pool is closed.
func RegisterPoolMetrics(meter metric.Meter, src StatsSource) (metric.Registration, error) {
	conns, err := meter.Int64ObservableGauge("tenantstore.pool.connections",
		metric.WithDescription("Live store connections by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("tenantstore/observability: connections gauge: %w", err)
	}
	maxConns, err := meter.Int64ObservableGauge("tenantstore.pool.max",
		metric.WithDescription("Maximum concurrently leased connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("tenantstore/observability: max gauge: %w", err)
	}
	waiting, err := meter.Int64ObservableGauge("tenantstore.pool.waiting",
		metric.WithDescription("Callers waiting for a connection"),
		metric.WithUnit("{caller}"))
	if err != nil {
		return nil, fmt.Errorf("tenantstore/observability: waiting gauge: %w", err)
	}
	dialed, err := meter.Int64ObservableCounter("tenantstore.pool.dialed",
		metric.WithDescription("Connections created"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("tenantstore/observability: dialed counter: %w", err)
	}
	destroyed, err := meter.Int64ObservableCounter("tenantstore.pool.destroyed",
		metric.WithDescription("Connections destroyed"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("tenantstore/observability: destroyed counter: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := src.Stats()
		o.ObserveInt64(conns, int64(st.Idle), metric.WithAttributes(stateIdle))
		o.ObserveInt64(conns, int64(st.Leased), metric.WithAttributes(stateLeased))
		o.ObserveInt64(maxConns, int64(st.Max))
		o.ObserveInt64(waiting, st.Waiting)
		o.ObserveInt64(dialed, st.Dialed)
		o.ObserveInt64(destroyed, st.Destroyed)
		return nil
	}, conns, maxConns, waiting, dialed, destroyed)
}
