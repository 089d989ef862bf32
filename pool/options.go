package pool

import (
	"log/slog"
	"time"
)

// Option configures a Pool.
type Option func(*Pool)

// WithMax bounds the number of concurrently leased connections.
func WithMax(n int) Option {
	return func(p *Pool) { p.max = n }
}

// WithMin sets the number of connections created at startup and kept
// through idle eviction.
func WithMin(n int) Option {
	return func(p *Pool) { p.min = n }
}

// WithAcquireTimeout sets how long Acquire waits for a free connection.
// A zero value waits until the caller's context is done.
func WithAcquireTimeout(d time.Duration) Option {
	return func(p *Pool) { p.acquireTimeout = d }
}

// WithIdleTimeout enables eviction of connections idle for longer than d.
// A zero value disables eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(p *Pool) { p.idleTimeout = d }
}

// WithLogger sets the logger for the pool.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}
