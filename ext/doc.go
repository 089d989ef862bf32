// Package ext defines the extension system for tenantstore.
//
// Extensions are notified of lifecycle events and can react to them,
// writing audit logs, invalidating caches, publishing change events.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnDocumentsInserted(ctx context.Context, s scope.Scope, ids []string) error {
//	    log.Printf("%s: inserted %v", s, ids)
//	    return nil
//	}
//
// # Document Lifecycle Hooks
//
//   - [DocumentsInserted] — Insert or InsertMany stored new documents
//   - [DocumentUpdated] — a single-document update matched or upserted
//   - [DocumentsUpdated] — a criteria update ran
//   - [DocumentRemoved] — a single document was removed
//   - [DocumentsRemoved] — a criteria removal ran
//
// # Other Hooks
//
//   - [OperationFailed] — any provider operation returned an error
//   - [Shutdown] — the provider is closing
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hooks run synchronously on
// the caller's goroutine after the connection has been released.
package ext
