package provider

import (
	"log/slog"
	"time"

	"github.com/xraph/tenantstore/ext"
	"github.com/xraph/tenantstore/middleware"
	"github.com/xraph/tenantstore/pool"
)

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger for the provider and its default middleware.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithMiddleware appends middleware to the operation chain. The provider
// always installs Recover and Scope first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(p *Provider) { p.middleware = append(p.middleware, mws...) }
}

// WithExtension registers a lifecycle extension.
func WithExtension(e ext.Extension) Option {
	return func(p *Provider) { p.pending = append(p.pending, e) }
}

// WithClock overrides the timestamp source. Timestamps are stored in UTC
// with millisecond precision.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithIDGenerator overrides the generator of external document ids.
func WithIDGenerator(gen func() string) Option {
	return func(p *Provider) { p.newID = gen }
}

// WithPoolOptions passes extra options to the pool built by Open. It is
// ignored by New.
func WithPoolOptions(opts ...pool.Option) Option {
	return func(p *Provider) { p.poolOpts = append(p.poolOpts, opts...) }
}
