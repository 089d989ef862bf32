// Package ext defines the extension system for tenantstore.
// Extensions are notified of lifecycle events (documents inserted, updated,
// removed, operations failing, etc.) and can react to them: audit trails,
// cache invalidation, change feeds.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/scope"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Document lifecycle hooks
// ──────────────────────────────────────────────────

// DocumentsInserted is called after Insert or InsertMany succeeds, with the
// external ids of the new documents.
type DocumentsInserted interface {
	OnDocumentsInserted(ctx context.Context, s scope.Scope, ids []string) error
}

// DocumentUpdated is called after a single-document update matched or
// created a document. doc is the document as returned to the caller.
type DocumentUpdated interface {
	OnDocumentUpdated(ctx context.Context, s scope.Scope, doc tenantstore.Document) error
}

// DocumentsUpdated is called after a criteria update.
type DocumentsUpdated interface {
	OnDocumentsUpdated(ctx context.Context, s scope.Scope, matched, modified int64) error
}

// DocumentRemoved is called after a single document was removed.
type DocumentRemoved interface {
	OnDocumentRemoved(ctx context.Context, s scope.Scope, doc tenantstore.Document) error
}

// DocumentsRemoved is called after a criteria removal.
type DocumentsRemoved interface {
	OnDocumentsRemoved(ctx context.Context, s scope.Scope, deleted int64) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// OperationFailed is called when any provider operation returns an error.
type OperationFailed interface {
	OnOperationFailed(ctx context.Context, op string, s scope.Scope, err error) error
}

// Shutdown is called when the provider is closed.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
