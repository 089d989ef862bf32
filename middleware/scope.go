package middleware

import (
	"context"

	"github.com/xraph/tenantstore/scope"
)

// Scope returns middleware that stores the operation's tenant scope in the
// context, so hooks and drivers further down can read it with scope.From.
func Scope() Middleware {
	return func(ctx context.Context, op *Operation, next Handler) error {
		if op.Scope.Tenant != "" {
			ctx = scope.With(ctx, op.Scope)
		}
		return next(ctx)
	}
}
