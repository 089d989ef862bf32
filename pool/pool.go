package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/store"
)

// destroyTimeout bounds closing a single connection.
const destroyTimeout = 10 * time.Second

// Lease is a connection on loan from the pool. It is owned by exactly one
// operation until handed back with Release.
type Lease struct {
	conn      store.Conn
	createdAt time.Time
	lastUsed  time.Time
	leased    bool
}

// Conn returns the leased connection.
func (l *Lease) Conn() store.Conn { return l.conn }

// CreatedAt returns when the underlying connection was dialed.
func (l *Lease) CreatedAt() time.Time { return l.createdAt }

// Stats is a point-in-time view of the pool.
type Stats struct {
	Max       int
	Min       int
	Size      int   // live connections, idle plus leased
	Idle      int   // connections waiting in the idle set
	Leased    int   // connections currently on loan
	Waiting   int64 // Acquire calls blocked on a free slot
	Dialed    int64 // connections created over the pool's lifetime
	Destroyed int64 // connections torn down over the pool's lifetime
}

// Pool is a bounded pool of store connections.
type Pool struct {
	dialer         store.Dialer
	logger         *slog.Logger
	now            func() time.Time
	max            int
	min            int
	acquireTimeout time.Duration
	idleTimeout    time.Duration

	// sem holds one permit per outstanding lease.
	sem *semaphore.Weighted

	mu        sync.Mutex
	idle      []*Lease
	size      int
	leased    int
	waiting   int64
	dialed    int64
	destroyed int64
	closed    bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a pool and eagerly dials Min connections. Warm-up failures
// are logged, not returned: the missing connections are dialed lazily by
// Acquire, which is where an unreachable store surfaces.
func New(ctx context.Context, dialer store.Dialer, opts ...Option) (*Pool, error) {
	p := &Pool{
		dialer:         dialer,
		logger:         slog.Default(),
		now:            time.Now,
		max:            100,
		min:            1,
		acquireTimeout: 30 * time.Second,
		stopCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if dialer == nil {
		return nil, fmt.Errorf("%w: pool needs a dialer", tenantstore.ErrInvalidConfig)
	}
	if p.max <= 0 {
		return nil, fmt.Errorf("%w: max must be positive, got %d", tenantstore.ErrInvalidConfig, p.max)
	}
	if p.min < 0 || p.min > p.max {
		return nil, fmt.Errorf("%w: min must be within [0, %d], got %d", tenantstore.ErrInvalidConfig, p.max, p.min)
	}
	p.sem = semaphore.NewWeighted(int64(p.max))

	p.warmUp(ctx)

	if p.idleTimeout > 0 {
		p.wg.Add(1)
		go p.reaperLoop()
	}

	p.logger.Info("connection pool started",
		slog.Int("max", p.max),
		slog.Int("min", p.min),
		slog.Int("size", p.Stats().Size),
	)
	return p, nil
}

func (p *Pool) warmUp(ctx context.Context) {
	if p.min == 0 {
		return
	}

	var (
		g     errgroup.Group
		mu    sync.Mutex
		ready = make([]*Lease, 0, p.min)
	)
	for range p.min {
		g.Go(func() error {
			conn, err := p.dialer.Dial(ctx)
			if err != nil {
				return err
			}
			t := p.now()
			mu.Lock()
			ready = append(ready, &Lease{conn: conn, createdAt: t, lastUsed: t})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn("connection pool warm-up incomplete",
			slog.Int("wanted", p.min),
			slog.Int("ready", len(ready)),
			slog.String("error", err.Error()),
		)
	}

	p.mu.Lock()
	p.idle = append(p.idle, ready...)
	p.size += len(ready)
	p.dialed += int64(len(ready))
	p.mu.Unlock()
}

// Acquire leases a connection, dialing a new one when the idle set is
// empty. It blocks while Max leases are outstanding. Every error is a
// tenantstore ConnectionError.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	if p.isClosed() {
		return nil, tenantstore.ConnectionError("acquire", tenantstore.ErrPoolClosed)
	}

	if err := p.waitSlot(ctx); err != nil {
		return nil, err
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.sem.Release(1)
			return nil, tenantstore.ConnectionError("acquire", tenantstore.ErrPoolClosed)
		}

		n := len(p.idle)
		if n == 0 {
			// Reserve the slot before dialing so Stats stays accurate.
			p.size++
			p.leased++
			p.mu.Unlock()
			return p.dial(ctx)
		}

		l := p.idle[n-1]
		p.idle = p.idle[:n-1]
		if err := l.conn.Err(); err != nil {
			p.size--
			p.destroyed++
			p.mu.Unlock()
			p.destroy(l, "unusable while idle", err)
			continue
		}
		l.leased = true
		l.lastUsed = p.now()
		p.leased++
		p.mu.Unlock()
		return l, nil
	}
}

func (p *Pool) waitSlot(ctx context.Context) error {
	if p.sem.TryAcquire(1) {
		return nil
	}

	p.mu.Lock()
	p.waiting++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.waiting--
		p.mu.Unlock()
	}()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if p.acquireTimeout > 0 {
		var cancelTimeout context.CancelFunc
		waitCtx, cancelTimeout = context.WithTimeout(waitCtx, p.acquireTimeout)
		defer cancelTimeout()
	}

	// Close holds every permit until it returns, so a waiter must not sit
	// out its timeout behind it.
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if p.isClosed() {
			return tenantstore.ConnectionError("acquire", tenantstore.ErrPoolClosed)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return tenantstore.ConnectionError("acquire", ctxErr)
		}
		return tenantstore.ConnectionError("acquire",
			fmt.Errorf("%w after %s", tenantstore.ErrPoolExhausted, p.acquireTimeout))
	}
	return nil
}

// dial creates a connection for a slot already reserved by Acquire.
func (p *Pool) dial(ctx context.Context) (*Lease, error) {
	conn, err := p.dialer.Dial(ctx)
	if err != nil {
		p.mu.Lock()
		p.size--
		p.leased--
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, tenantstore.ConnectionError("acquire", err)
	}

	t := p.now()
	p.mu.Lock()
	p.dialed++
	p.mu.Unlock()
	return &Lease{conn: conn, createdAt: t, lastUsed: t, leased: true}, nil
}

// Release hands a lease back. The connection returns to the idle set, or is
// destroyed when it reports itself unusable or the pool is closed.
// Releasing a lease twice is a no-op.
func (p *Pool) Release(l *Lease) {
	if l == nil {
		return
	}

	p.mu.Lock()
	if !l.leased {
		p.mu.Unlock()
		p.logger.Warn("release of a connection that is not leased")
		return
	}
	l.leased = false
	p.leased--

	connErr := l.conn.Err()
	if connErr != nil || p.closed {
		p.size--
		p.destroyed++
		p.mu.Unlock()
		p.sem.Release(1)

		reason := "pool closed"
		if connErr != nil {
			reason = "unusable on release"
		}
		p.destroy(l, reason, connErr)
		return
	}

	l.lastUsed = p.now()
	p.idle = append(p.idle, l)
	p.mu.Unlock()
	p.sem.Release(1)
}

func (p *Pool) destroy(l *Lease, reason string, cause error) {
	attrs := []any{slog.String("reason", reason)}
	if cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	p.logger.Debug("destroying connection", attrs...)

	ctx, cancel := context.WithTimeout(context.Background(), destroyTimeout)
	defer cancel()
	if err := l.conn.Close(ctx); err != nil {
		p.logger.Warn("connection close failed", slog.String("error", err.Error()))
	}
}

// Stats returns a snapshot of the pool's bookkeeping.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Max:       p.max,
		Min:       p.min,
		Size:      p.size,
		Idle:      len(p.idle),
		Leased:    p.leased,
		Waiting:   p.waiting,
		Dialed:    p.dialed,
		Destroyed: p.destroyed,
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close stops handing out connections, waits for outstanding leases to come
// back (bounded by ctx) and destroys every idle connection. Leases released
// after Close are destroyed on release.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()

	// Holding every permit means no lease is outstanding.
	drainErr := p.sem.Acquire(ctx, int64(p.max))
	if drainErr != nil {
		st := p.Stats()
		p.logger.Warn("connection pool closed with outstanding leases",
			slog.Int("leased", st.Leased),
		)
	}

	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.size -= len(idle)
	p.destroyed += int64(len(idle))
	p.mu.Unlock()

	for _, l := range idle {
		p.destroy(l, "pool closed", nil)
	}

	p.logger.Info("connection pool closed", slog.Int("destroyed", len(idle)))
	if drainErr != nil {
		return fmt.Errorf("tenantstore/pool: close: %w", drainErr)
	}
	return nil
}
