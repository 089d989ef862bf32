// Package middleware provides composable middleware for store operations.
//
// A [Middleware] is a function that wraps a provider operation. Middleware
// are composed into a chain using [Chain] and applied around every
// operation, including the pool acquire. They are applied right-to-left:
// the first middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs operation name, tenant, collection, duration and outcome
//   - [Recover] catches panics and converts them to execution errors
//   - [Timeout] cancels the operation context after a fixed duration
//   - [Tracing] wraps execution in an OpenTelemetry span
//   - [Metrics] records per-operation duration and outcome counters
//   - [Scope] injects the tenant scope into the context
//   - [RateLimit] throttles operations per tenant
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, op *middleware.Operation, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
