package middleware

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/tenantstore"
)

// RateLimit returns middleware that caps each tenant at r operations per
// second with the given burst. Callers wait for a token; when the context
// ends first the operation fails with a connection error and never reaches
// the pool, so one noisy tenant cannot drain it for the others.
func RateLimit(r rate.Limit, burst int) Middleware {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	limiterFor := func(tenant string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[tenant]
		if !ok {
			l = rate.NewLimiter(r, burst)
			limiters[tenant] = l
		}
		return l
	}

	return func(ctx context.Context, op *Operation, next Handler) error {
		if err := limiterFor(op.Scope.Tenant).Wait(ctx); err != nil {
			return tenantstore.ConnectionError(op.Name,
				fmt.Errorf("rate limit for tenant %q: %w", op.Scope.Tenant, err))
		}
		return next(ctx)
	}
}
