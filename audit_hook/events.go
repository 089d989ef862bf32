package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionDocumentsInserted = "documents.inserted"
	ActionDocumentUpdated   = "document.updated"
	ActionDocumentsUpdated  = "documents.updated"
	ActionDocumentRemoved   = "document.removed"
	ActionDocumentsRemoved  = "documents.removed"
	ActionOperationFailed   = "operation.failed"
)

// Audit event categories group related actions.
const (
	CategoryDocument  = "tenantstore.document"
	CategoryOperation = "tenantstore.operation"
)

// ResourceCollection is the Resource field of every event; ResourceID is
// the affected document id when a single document is involved.
const ResourceCollection = "collection"

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionDocumentsInserted,
		ActionDocumentUpdated,
		ActionDocumentsUpdated,
		ActionDocumentRemoved,
		ActionDocumentsRemoved,
		ActionOperationFailed,
	}
}
