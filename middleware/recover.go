package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/tenantstore"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to execution errors and logged with a stack trace.
// Deferred releases inside the handler have already run by the time the
// panic reaches this middleware, so no lease is leaked.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, op *Operation, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("operation panicked",
					slog.String("op", op.Name),
					slog.String("tenant", op.Scope.Tenant),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = tenantstore.ExecutionError(op.Name, fmt.Errorf("panic: %v", r))
			}
		}()
		return next(ctx)
	}
}
