package ext

import (
	"context"
	"log/slog"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/scope"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type documentsInsertedEntry struct {
	name string
	hook DocumentsInserted
}

type documentUpdatedEntry struct {
	name string
	hook DocumentUpdated
}

type documentsUpdatedEntry struct {
	name string
	hook DocumentsUpdated
}

type documentRemovedEntry struct {
	name string
	hook DocumentRemoved
}

type documentsRemovedEntry struct {
	name string
	hook DocumentsRemoved
}

type operationFailedEntry struct {
	name string
	hook OperationFailed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	documentsInserted []documentsInsertedEntry
	documentUpdated   []documentUpdatedEntry
	documentsUpdated  []documentsUpdatedEntry
	documentRemoved   []documentRemovedEntry
	documentsRemoved  []documentsRemovedEntry
	operationFailed   []operationFailedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(DocumentsInserted); ok {
		r.documentsInserted = append(r.documentsInserted, documentsInsertedEntry{name, h})
	}
	if h, ok := e.(DocumentUpdated); ok {
		r.documentUpdated = append(r.documentUpdated, documentUpdatedEntry{name, h})
	}
	if h, ok := e.(DocumentsUpdated); ok {
		r.documentsUpdated = append(r.documentsUpdated, documentsUpdatedEntry{name, h})
	}
	if h, ok := e.(DocumentRemoved); ok {
		r.documentRemoved = append(r.documentRemoved, documentRemovedEntry{name, h})
	}
	if h, ok := e.(DocumentsRemoved); ok {
		r.documentsRemoved = append(r.documentsRemoved, documentsRemovedEntry{name, h})
	}
	if h, ok := e.(OperationFailed); ok {
		r.operationFailed = append(r.operationFailed, operationFailedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Document event emitters
// ──────────────────────────────────────────────────

// EmitDocumentsInserted notifies all extensions that implement DocumentsInserted.
func (r *Registry) EmitDocumentsInserted(ctx context.Context, s scope.Scope, ids []string) {
	for _, e := range r.documentsInserted {
		if err := e.hook.OnDocumentsInserted(ctx, s, ids); err != nil {
			r.logHookError("OnDocumentsInserted", e.name, err)
		}
	}
}

// EmitDocumentUpdated notifies all extensions that implement DocumentUpdated.
func (r *Registry) EmitDocumentUpdated(ctx context.Context, s scope.Scope, doc tenantstore.Document) {
	for _, e := range r.documentUpdated {
		if err := e.hook.OnDocumentUpdated(ctx, s, doc); err != nil {
			r.logHookError("OnDocumentUpdated", e.name, err)
		}
	}
}

// EmitDocumentsUpdated notifies all extensions that implement DocumentsUpdated.
func (r *Registry) EmitDocumentsUpdated(ctx context.Context, s scope.Scope, matched, modified int64) {
	for _, e := range r.documentsUpdated {
		if err := e.hook.OnDocumentsUpdated(ctx, s, matched, modified); err != nil {
			r.logHookError("OnDocumentsUpdated", e.name, err)
		}
	}
}

// EmitDocumentRemoved notifies all extensions that implement DocumentRemoved.
func (r *Registry) EmitDocumentRemoved(ctx context.Context, s scope.Scope, doc tenantstore.Document) {
	for _, e := range r.documentRemoved {
		if err := e.hook.OnDocumentRemoved(ctx, s, doc); err != nil {
			r.logHookError("OnDocumentRemoved", e.name, err)
		}
	}
}

// EmitDocumentsRemoved notifies all extensions that implement DocumentsRemoved.
func (r *Registry) EmitDocumentsRemoved(ctx context.Context, s scope.Scope, deleted int64) {
	for _, e := range r.documentsRemoved {
		if err := e.hook.OnDocumentsRemoved(ctx, s, deleted); err != nil {
			r.logHookError("OnDocumentsRemoved", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitOperationFailed notifies all extensions that implement OperationFailed.
func (r *Registry) EmitOperationFailed(ctx context.Context, op string, s scope.Scope, opErr error) {
	for _, e := range r.operationFailed {
		if err := e.hook.OnOperationFailed(ctx, op, s, opErr); err != nil {
			r.logHookError("OnOperationFailed", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not fail the operation
// that triggered them.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
