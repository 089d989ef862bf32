// Package middleware provides composable middleware for store operations.
// Middleware wraps an operation synchronously and can modify execution
// (recover from panics, inject scope, log, add tracing, etc.).
package middleware

import (
	"context"

	"github.com/xraph/tenantstore/scope"
)

// Operation describes the provider call being executed.
type Operation struct {
	// Name is the provider operation, e.g. "find" or "insertMany".
	Name string

	// Scope is the tenant and collection the operation targets.
	Scope scope.Scope
}

// Handler is the terminal function that executes the operation.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the operation being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, op *Operation, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, scope) executes as:
//
//	logging → recover → scope → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, op *Operation, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, op, prev)
			}
		}
		return h(ctx)
	}
}
