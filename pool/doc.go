// Package pool owns the bounded set of live store connections.
//
// A Pool lends connections out as Leases and reclaims them on Release.
// At most Max leases are outstanding at any instant; further Acquire calls
// wait until a lease is released or the acquire wait limit elapses. Waiters
// are usually served in arrival order, but callers must not rely on it.
//
// A connection that reports itself unusable (store.Conn.Err) when it is
// released is destroyed instead of being returned to the idle set, and the
// pool shrinks. Min connections are created eagerly by New; with an idle
// timeout configured, idle connections above Min are evicted by a
// background reaper.
//
//	p, err := pool.New(ctx, dialer, pool.WithMax(10), pool.WithMin(2))
//	lease, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Release(lease)
package pool
