package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/store/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newPool(t *testing.T, srv *memory.Store, opts ...Option) *Pool {
	t.Helper()
	p, err := New(context.Background(), srv, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestNewWarmsMinConnections(t *testing.T) {
	srv := memory.New()
	p := newPool(t, srv, WithMax(5), WithMin(3))

	st := p.Stats()
	if st.Size != 3 || st.Idle != 3 || st.Leased != 0 {
		t.Fatalf("stats = %+v, want size 3 idle 3", st)
	}
	if got := srv.Dials(); got != 3 {
		t.Fatalf("dials = %d, want 3", got)
	}
}

func TestNewInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero max", []Option{WithMax(0)}},
		{"negative min", []Option{WithMin(-1)}},
		{"min above max", []Option{WithMax(2), WithMin(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), memory.New(), tt.opts...)
			if !errors.Is(err, tenantstore.ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestWarmUpFailureIsNotFatal(t *testing.T) {
	srv := memory.New()
	srv.FailDial(errors.New("connection refused"))

	p := newPool(t, srv, WithMax(2), WithMin(2))
	if st := p.Stats(); st.Size != 0 {
		t.Fatalf("size = %d, want 0", st.Size)
	}

	_, err := p.Acquire(context.Background())
	if !errors.Is(err, tenantstore.ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
	if st := p.Stats(); st.Size != 0 || st.Leased != 0 {
		t.Fatalf("failed dial leaked a slot: %+v", st)
	}

	// Once the store is reachable the pool recovers lazily.
	srv.FailDial(nil)
	l, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after recovery: %v", err)
	}
	p.Release(l)
}

func TestAcquireReusesReleasedConnection(t *testing.T) {
	srv := memory.New()
	p := newPool(t, srv, WithMax(2), WithMin(0))

	ctx := context.Background()
	l1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	first := l1.Conn()
	p.Release(l1)

	l2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer p.Release(l2)

	if l2.Conn() != first {
		t.Fatal("expected the idle connection to be reused")
	}
	if got := srv.Dials(); got != 1 {
		t.Fatalf("dials = %d, want 1", got)
	}
}

func TestConcurrentLeasesNeverExceedMax(t *testing.T) {
	const (
		max     = 3
		workers = 24
	)
	srv := memory.New()
	p := newPool(t, srv, WithMax(max), WithMin(0), WithAcquireTimeout(5*time.Second))

	var (
		current  atomic.Int64
		observed atomic.Int64
		wg       sync.WaitGroup
		failures atomic.Int64
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := p.Acquire(context.Background())
			if err != nil {
				failures.Add(1)
				return
			}
			n := current.Add(1)
			for {
				old := observed.Load()
				if n <= old || observed.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
			p.Release(l)
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d acquires failed", failures.Load())
	}
	if got := observed.Load(); got > max {
		t.Fatalf("observed %d concurrent leases, max is %d", got, max)
	}
	st := p.Stats()
	if st.Leased != 0 || st.Size > max {
		t.Fatalf("stats after run = %+v", st)
	}
	if got := srv.Dials(); got > max {
		t.Fatalf("dials = %d, want at most %d", got, max)
	}
}

func TestAcquireTimesOutWhenExhausted(t *testing.T) {
	p := newPool(t, memory.New(), WithMax(1), WithMin(0), WithAcquireTimeout(20*time.Millisecond))

	held, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer p.Release(held)

	start := time.Now()
	_, err = p.Acquire(context.Background())
	if !errors.Is(err, tenantstore.ErrPoolExhausted) {
		t.Fatalf("err = %v, want ErrPoolExhausted", err)
	}
	if !errors.Is(err, tenantstore.ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection kind", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("returned after %s, before the wait limit", elapsed)
	}
	if st := p.Stats(); st.Waiting != 0 {
		t.Fatalf("waiting = %d after timeout, want 0", st.Waiting)
	}
}

func TestAcquireHonoursCallerContext(t *testing.T) {
	p := newPool(t, memory.New(), WithMax(1), WithMin(0), WithAcquireTimeout(0))

	held, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer p.Release(held)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if tenantstore.KindOf(err) != tenantstore.KindConnection {
		t.Fatalf("kind = %v, want connection", tenantstore.KindOf(err))
	}
}

func TestWaiterIsServedOnRelease(t *testing.T) {
	p := newPool(t, memory.New(), WithMax(1), WithMin(0), WithAcquireTimeout(time.Second))

	held, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	got := make(chan error, 1)
	go func() {
		l, err := p.Acquire(context.Background())
		if err == nil {
			p.Release(l)
		}
		got <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.Release(held)

	select {
	case err := <-got:
		if err != nil {
			t.Fatalf("waiter: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not served")
	}
}

func TestBrokenConnectionIsDestroyedOnRelease(t *testing.T) {
	srv := memory.New()
	p := newPool(t, srv, WithMax(2), WithMin(0))

	l, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	conn := l.Conn().(*memory.Conn)
	conn.Break(errors.New("socket reset"))
	p.Release(l)

	st := p.Stats()
	if st.Size != 0 || st.Idle != 0 || st.Destroyed != 1 {
		t.Fatalf("stats = %+v, want the connection destroyed", st)
	}
	if !conn.Closed() {
		t.Fatal("broken connection was not closed")
	}
	if got := srv.OpenConns(); got != 0 {
		t.Fatalf("open conns = %d, want 0", got)
	}
}

func TestBrokenIdleConnectionIsSkipped(t *testing.T) {
	srv := memory.New()
	p := newPool(t, srv, WithMax(2), WithMin(1))

	l, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	stale := l.Conn().(*memory.Conn)
	p.Release(l)
	stale.Break(errors.New("server restarted"))

	l, err = p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer p.Release(l)

	if l.Conn() == stale {
		t.Fatal("acquired a broken connection")
	}
	if got := srv.Dials(); got != 2 {
		t.Fatalf("dials = %d, want 2", got)
	}
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	p := newPool(t, memory.New(), WithMax(2), WithMin(0))

	l, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(l)
	p.Release(l)
	p.Release(nil)

	st := p.Stats()
	if st.Idle != 1 || st.Leased != 0 || st.Size != 1 {
		t.Fatalf("stats = %+v, want one idle connection", st)
	}
}

func TestEvictIdleKeepsMin(t *testing.T) {
	clock := newFakeClock()
	srv := memory.New()
	p := newPool(t, srv,
		WithMax(4), WithMin(1),
		WithIdleTimeout(time.Hour),
		WithClock(clock.Now),
	)

	ctx := context.Background()
	leases := make([]*Lease, 0, 3)
	for range 3 {
		l, err := p.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		leases = append(leases, l)
	}
	for _, l := range leases {
		p.Release(l)
	}

	if n := p.evictIdle(); n != 0 {
		t.Fatalf("evicted %d fresh connections", n)
	}

	clock.Advance(2 * time.Hour)
	if n := p.evictIdle(); n != 2 {
		t.Fatalf("evicted %d, want 2", n)
	}
	st := p.Stats()
	if st.Size != 1 || st.Idle != 1 {
		t.Fatalf("stats = %+v, want min connection kept", st)
	}
	if got := srv.OpenConns(); got != 1 {
		t.Fatalf("open conns = %d, want 1", got)
	}
}

func TestReaperEvictsInBackground(t *testing.T) {
	srv := memory.New()
	p := newPool(t, srv, WithMax(2), WithMin(0), WithIdleTimeout(20*time.Millisecond))

	l, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(l)

	deadline := time.Now().Add(2 * time.Second)
	for p.Stats().Size != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("idle connection not reaped: %+v", p.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClose(t *testing.T) {
	srv := memory.New()
	p, err := New(context.Background(), srv, WithMax(3), WithMin(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := srv.OpenConns(); got != 0 {
		t.Fatalf("open conns = %d after close", got)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	_, err = p.Acquire(context.Background())
	if !errors.Is(err, tenantstore.ErrPoolClosed) {
		t.Fatalf("err = %v, want ErrPoolClosed", err)
	}
}

func TestCloseWithOutstandingLease(t *testing.T) {
	srv := memory.New()
	p, err := New(context.Background(), srv, WithMax(2), WithMin(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close err = %v, want deadline exceeded", err)
	}

	// A lease returned after Close is destroyed, not pooled.
	p.Release(l)
	if st := p.Stats(); st.Size != 0 || st.Idle != 0 {
		t.Fatalf("stats = %+v, want empty pool", st)
	}
	if got := srv.OpenConns(); got != 0 {
		t.Fatalf("open conns = %d, want 0", got)
	}
}

func TestCloseWaitsForRelease(t *testing.T) {
	srv := memory.New()
	p, err := New(context.Background(), srv, WithMax(2), WithMin(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Release(l)
	}()

	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := srv.OpenConns(); got != 0 {
		t.Fatalf("open conns = %d, want 0", got)
	}
}

func TestCloseFailsPendingWaiters(t *testing.T) {
	p, err := New(context.Background(), memory.New(), WithMax(1), WithMin(0), WithAcquireTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	held, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	got := make(chan error, 1)
	go func() {
		l, err := p.Acquire(context.Background())
		if err == nil {
			p.Release(l)
		}
		got <- err
	}()
	for p.Stats().Waiting == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	closed := make(chan error, 1)
	go func() { closed <- p.Close(ctx) }()

	select {
	case err := <-got:
		if !errors.Is(err, tenantstore.ErrPoolClosed) {
			t.Fatalf("waiter err = %v, want ErrPoolClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter still blocked after Close")
	}

	p.Release(held)
	<-closed
}
