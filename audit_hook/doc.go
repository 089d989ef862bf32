// Package audithook is a tenantstore extension that bridges document
// mutations to an audit trail backend.
//
// Every mutation hook emits a structured audit event through the [Recorder]
// interface, tagged with the tenant and collection it touched. Failed
// operations are recorded with critical severity and the error as reason.
//
// # Usage
//
//	pr := provider.New(p, provider.WithExtension(
//	    audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	        return auditLog.Append(ctx, evt)
//	    })),
//	))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionDocumentRemoved,
//	        audithook.ActionDocumentsRemoved,
//	    ),
//	)
package audithook
