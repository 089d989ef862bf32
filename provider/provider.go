package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/ext"
	"github.com/xraph/tenantstore/id"
	"github.com/xraph/tenantstore/middleware"
	"github.com/xraph/tenantstore/observability"
	"github.com/xraph/tenantstore/pool"
	"github.com/xraph/tenantstore/scope"
	"github.com/xraph/tenantstore/store"
	mongostore "github.com/xraph/tenantstore/store/mongo"
)

// Operation names, as reported to middleware, extensions and errors.
const (
	opFind              = "find"
	opFindAsStream      = "findAsStream"
	opCount             = "count"
	opFindOne           = "findOne"
	opFindByID          = "findById"
	opInsert            = "insert"
	opInsertMany        = "insertMany"
	opUpdate            = "update"
	opFindByIDAndUpdate = "findByIdAndUpdate"
	opUpdateByCriteria  = "updateByCriteria"
	opRemove            = "remove"
	opRemoveMultiple    = "removeMultiple"
	opFindByIDAndRemove = "findByIdAndRemove"
	opAggregate         = "aggregate"
	opPing              = "ping"
)

// Provider executes tenant-scoped document operations over a connection
// pool. It is safe for concurrent use.
type Provider struct {
	pool       *pool.Pool
	logger     *slog.Logger
	middleware []middleware.Middleware
	chain      middleware.Middleware
	exts       *ext.Registry
	pending    []ext.Extension
	now        func() time.Time
	newID      func() string
	poolOpts   []pool.Option
	metrics    metric.Registration
}

// step runs against one leased collection.
type step func(ctx context.Context, c store.Collection) error

// New creates a provider over an existing pool. The provider takes
// ownership of the pool: Close closes it.
func New(p *pool.Pool, opts ...Option) *Provider {
	pr := configure(opts)
	pr.attach(p)
	return pr
}

// Open builds a MongoDB dialer and a pool from cfg and returns a provider
// over them.
func Open(ctx context.Context, cfg tenantstore.Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pr := configure(opts)

	dialer := mongostore.NewDialer(cfg.ConnectionURI(),
		mongostore.WithConnectTimeout(cfg.ConnectTimeout),
		mongostore.WithKeepAlive(cfg.KeepAlive),
		mongostore.WithAppName("tenantstore"),
		mongostore.WithLogger(pr.logger),
	)
	poolOpts := append([]pool.Option{
		pool.WithMax(cfg.Max),
		pool.WithMin(cfg.Min),
		pool.WithAcquireTimeout(cfg.AcquireTimeout),
		pool.WithIdleTimeout(cfg.IdleTimeout),
		pool.WithLogger(pr.logger),
	}, pr.poolOpts...)

	p, err := pool.New(ctx, dialer, poolOpts...)
	if err != nil {
		return nil, fmt.Errorf("tenantstore/provider: open pool: %w", err)
	}
	pr.attach(p)
	return pr, nil
}

func configure(opts []Option) *Provider {
	pr := &Provider{
		logger: slog.Default(),
		now:    time.Now,
		newID:  id.Generate,
	}
	for _, opt := range opts {
		opt(pr)
	}

	pr.exts = ext.NewRegistry(pr.logger)
	for _, e := range pr.pending {
		pr.exts.Register(e)
	}
	pr.pending = nil

	// Recover is outermost so panics in caller middleware are converted too.
	mws := append([]middleware.Middleware{
		middleware.Recover(pr.logger),
		middleware.Scope(),
	}, pr.middleware...)
	pr.chain = middleware.Chain(mws...)
	return pr
}

func (pr *Provider) attach(p *pool.Pool) {
	pr.pool = p
	reg, err := observability.RegisterPoolMetrics(otel.Meter("github.com/xraph/tenantstore"), p)
	if err != nil {
		pr.logger.Warn("pool metrics unavailable", slog.String("error", err.Error()))
		return
	}
	pr.metrics = reg
}

// Pool returns the provider's connection pool.
func (pr *Provider) Pool() *pool.Pool { return pr.pool }

// timestamp is the provider clock in UTC, truncated to the store's
// millisecond precision so values read back compare equal.
func (pr *Provider) timestamp() time.Time {
	return pr.now().UTC().Truncate(time.Millisecond)
}

// run executes one operation: scope validation, then prepare, then each
// step on its own lease, all inside the middleware chain. Failures are
// reported to extensions before being returned.
func (pr *Provider) run(ctx context.Context, op string, s scope.Scope, prepare func() error, steps ...step) error {
	err := pr.chain(ctx, &middleware.Operation{Name: op, Scope: s}, func(ctx context.Context) error {
		if err := s.Validate(); err != nil {
			return tenantstore.ValidationError(op, "%w", err)
		}
		if prepare != nil {
			if err := prepare(); err != nil {
				return err
			}
		}
		for _, fn := range steps {
			if err := pr.exec(ctx, op, s, fn); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		pr.exts.EmitOperationFailed(ctx, op, s, err)
	}
	return err
}

// exec leases a connection for the duration of fn and releases it on every
// path out, panics included.
func (pr *Provider) exec(ctx context.Context, op string, s scope.Scope, fn step) error {
	lease, err := pr.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer pr.pool.Release(lease)

	return executionError(op, fn(ctx, lease.Conn().Collection(s.Tenant, s.Collection)))
}

// executionError classifies a store error, leaving typed errors alone.
func executionError(op string, err error) error {
	if err == nil || tenantstore.KindOf(err) != 0 {
		return err
	}
	return tenantstore.ExecutionError(op, err)
}

// Ping checks that a pooled connection can reach the store.
func (pr *Provider) Ping(ctx context.Context) error {
	err := pr.chain(ctx, &middleware.Operation{Name: opPing}, func(ctx context.Context) error {
		lease, err := pr.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		defer pr.pool.Release(lease)
		return executionError(opPing, lease.Conn().Ping(ctx))
	})
	return err
}

// Close notifies Shutdown extensions, then closes the pool, waiting for
// outstanding leases (open streams included) until ctx is done.
func (pr *Provider) Close(ctx context.Context) error {
	pr.exts.EmitShutdown(ctx)

	var errs []error
	if pr.metrics != nil {
		if err := pr.metrics.Unregister(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := pr.pool.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
