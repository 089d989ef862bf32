// Package tenantstore provides a multi-tenant data-access layer over MongoDB.
// Every logical tenant gets its own database; every operation borrows a
// connection from a bounded pool, runs against the tenant-scoped collection
// and returns the connection before it returns to the caller.
//
// tenantstore is designed as a library. The root package holds the shared
// vocabulary (configuration, error kinds, documents); the moving parts live
// in subpackages.
//
// # Quick Start
//
//	cfg := tenantstore.DefaultConfig()
//	cfg.DB = "app"
//
//	p, err := provider.Open(ctx, cfg, provider.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer p.Close(ctx)
//
//	sc := scope.Scope{Tenant: "acme", Collection: "providers"}
//	res, err := p.Insert(ctx, provider.InsertParams{
//	    Scope:   sc,
//	    Payload: provider.Single(tenantstore.Document{"name": "mongo"}),
//	})
//
// # Architecture
//
//   - pool: the bounded connection pool (acquire / release / destroy)
//   - query: pure normalization of identifiers, projections and payloads
//   - provider: CRUD, aggregate and streaming operations
//   - store: backend interfaces, with mongo and memory implementations
//   - middleware, ext, observability: cross-cutting concerns
//
// External identifiers (the "id" field) use TypeID: type-prefixed,
// K-sortable, UUIDv7-based strings.
package tenantstore
