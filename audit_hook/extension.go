package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/ext"
	"github.com/xraph/tenantstore/query"
	"github.com/xraph/tenantstore/scope"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.DocumentsInserted = (*Extension)(nil)
	_ ext.DocumentUpdated   = (*Extension)(nil)
	_ ext.DocumentsUpdated  = (*Extension)(nil)
	_ ext.DocumentRemoved   = (*Extension)(nil)
	_ ext.DocumentsRemoved  = (*Extension)(nil)
	_ ext.OperationFailed   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Where
	Tenant     string `json:"tenant"`
	Collection string `json:"collection"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges provider mutations to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// OnDocumentsInserted implements ext.DocumentsInserted.
func (e *Extension) OnDocumentsInserted(ctx context.Context, s scope.Scope, ids []string) error {
	var resourceID string
	if len(ids) == 1 {
		resourceID = ids[0]
	}
	return e.record(ctx, ActionDocumentsInserted, SeverityInfo, OutcomeSuccess,
		s, resourceID, CategoryDocument, nil,
		"count", len(ids),
		"ids", ids,
	)
}

// OnDocumentUpdated implements ext.DocumentUpdated.
func (e *Extension) OnDocumentUpdated(ctx context.Context, s scope.Scope, doc tenantstore.Document) error {
	id, _ := query.ExternalID(doc)
	return e.record(ctx, ActionDocumentUpdated, SeverityInfo, OutcomeSuccess,
		s, id, CategoryDocument, nil,
	)
}

// OnDocumentsUpdated implements ext.DocumentsUpdated.
func (e *Extension) OnDocumentsUpdated(ctx context.Context, s scope.Scope, matched, modified int64) error {
	return e.record(ctx, ActionDocumentsUpdated, SeverityInfo, OutcomeSuccess,
		s, "", CategoryDocument, nil,
		"matched", matched,
		"modified", modified,
	)
}

// OnDocumentRemoved implements ext.DocumentRemoved.
func (e *Extension) OnDocumentRemoved(ctx context.Context, s scope.Scope, doc tenantstore.Document) error {
	id, _ := query.ExternalID(doc)
	return e.record(ctx, ActionDocumentRemoved, SeverityWarning, OutcomeSuccess,
		s, id, CategoryDocument, nil,
	)
}

// OnDocumentsRemoved implements ext.DocumentsRemoved.
func (e *Extension) OnDocumentsRemoved(ctx context.Context, s scope.Scope, deleted int64) error {
	return e.record(ctx, ActionDocumentsRemoved, SeverityWarning, OutcomeSuccess,
		s, "", CategoryDocument, nil,
		"deleted", deleted,
	)
}

// OnOperationFailed implements ext.OperationFailed.
func (e *Extension) OnOperationFailed(ctx context.Context, op string, s scope.Scope, opErr error) error {
	return e.record(ctx, ActionOperationFailed, SeverityCritical, OutcomeFailure,
		s, "", CategoryOperation, opErr,
		"operation", op,
		"kind", tenantstore.KindOf(opErr).String(),
	)
}

func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	s scope.Scope,
	resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   ResourceCollection,
		Category:   category,
		Tenant:     s.Tenant,
		Collection: s.Collection,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"scope", s.String(),
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
