package pool

import (
	"log/slog"
	"time"
)

// reaperLoop periodically evicts connections idle for longer than the
// idle timeout.
func (p *Pool) reaperLoop() {
	defer p.wg.Done()

	interval := p.idleTimeout / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

// evictIdle destroys stale idle connections, never shrinking below min.
// It returns the number evicted.
func (p *Pool) evictIdle() int {
	cutoff := p.now().Add(-p.idleTimeout)

	p.mu.Lock()
	var evicted []*Lease
	kept := p.idle[:0]
	for _, l := range p.idle {
		if p.size > p.min && l.lastUsed.Before(cutoff) {
			evicted = append(evicted, l)
			p.size--
			p.destroyed++
			continue
		}
		kept = append(kept, l)
	}
	// Clear the tail so evicted leases are not retained by the backing array.
	for i := len(kept); i < len(p.idle); i++ {
		p.idle[i] = nil
	}
	p.idle = kept
	p.mu.Unlock()

	for _, l := range evicted {
		p.destroy(l, "idle timeout", nil)
	}
	if len(evicted) > 0 {
		p.logger.Debug("evicted idle connections", slog.Int("count", len(evicted)))
	}
	return len(evicted)
}
