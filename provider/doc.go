// Package provider is the tenant-scoped data access layer.
//
// Every operation takes a params struct carrying a scope.Scope (tenant and
// collection) plus its own named fields, and follows the same sequence:
// validate and normalize the input, lease a connection from the pool,
// resolve the tenant's collection, execute, release the connection, shape
// the result. The release runs on every exit path, panics included.
//
//	p, err := provider.Open(ctx, tenantstore.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer p.Close(ctx)
//
//	s := scope.Scope{Tenant: "acme", Collection: "providers"}
//	res, err := p.Insert(ctx, provider.InsertParams{
//	    Scope:   s,
//	    Payload: provider.Single(tenantstore.Document{"name": "mongo"}),
//	})
//
// Errors are *tenantstore.Error values of kind connection, validation or
// execution; match them with errors.Is against tenantstore.ErrConnection,
// tenantstore.ErrValidation and tenantstore.ErrExecution. Nothing is
// retried.
package provider
