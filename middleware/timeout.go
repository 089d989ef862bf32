package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Timeout returns middleware that enforces a per-operation deadline. The
// deadline covers the pool wait as well as store execution. A zero d makes
// the middleware a pass-through.
func Timeout(d time.Duration, logger *slog.Logger) Middleware {
	return func(ctx context.Context, op *Operation, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		logger.Debug("operation timeout set",
			slog.String("op", op.Name),
			slog.Duration("timeout", d),
		)
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
