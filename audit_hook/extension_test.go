package audithook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	ah "github.com/xraph/tenantstore/audit_hook"
	"github.com/xraph/tenantstore/ext"
	"github.com/xraph/tenantstore/pool"
	"github.com/xraph/tenantstore/provider"
	"github.com/xraph/tenantstore/scope"
	"github.com/xraph/tenantstore/store/memory"
)

// ── Mock recorder ────────────────────────────────────

type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

var testScope = scope.Scope{Tenant: "acme", Collection: "providers"}

func newProvider(t *testing.T, e *ah.Extension) *provider.Provider {
	t.Helper()
	p, err := pool.New(context.Background(), memory.New(), pool.WithMax(2), pool.WithMin(0))
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	pr := provider.New(p, provider.WithExtension(e))
	t.Cleanup(func() { _ = pr.Close(context.Background()) })
	return pr
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	e := ah.New(&mockRecorder{})
	if e.Name() != "audit-hook" {
		t.Errorf("expected audit-hook, got %q", e.Name())
	}
}

func TestExtension_RegistersAllHooks(t *testing.T) {
	reg := ext.NewRegistry(slog.Default())
	reg.Register(ah.New(&mockRecorder{}))
	if len(reg.Extensions()) != 1 {
		t.Fatalf("expected 1 extension, got %d", len(reg.Extensions()))
	}
}

func TestExtension_RecordsMutations(t *testing.T) {
	rec := &mockRecorder{}
	pr := newProvider(t, ah.New(rec))
	ctx := context.Background()

	ins, err := pr.Insert(ctx, provider.InsertParams{Scope: testScope, Payload: provider.Single(bson.M{"name": "Ada"})})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := pr.FindByIDAndUpdate(ctx, provider.FindByIDAndUpdateParams{
		Scope: testScope, ID: ins.ID, Payload: bson.M{"name": "Grace"},
	}); err != nil {
		t.Fatalf("FindByIDAndUpdate: %v", err)
	}
	if _, err := pr.FindByIDAndRemove(ctx, provider.FindByIDParams{Scope: testScope, ID: ins.ID}); err != nil {
		t.Fatalf("FindByIDAndRemove: %v", err)
	}

	tests := []struct {
		action   string
		severity string
	}{
		{ah.ActionDocumentsInserted, ah.SeverityInfo},
		{ah.ActionDocumentUpdated, ah.SeverityInfo},
		{ah.ActionDocumentRemoved, ah.SeverityWarning},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			evt := rec.findByAction(tt.action)
			if evt == nil {
				t.Fatalf("no %s event", tt.action)
			}
			if evt.ResourceID != ins.ID {
				t.Errorf("resource id = %q, want %q", evt.ResourceID, ins.ID)
			}
			if evt.Tenant != "acme" || evt.Collection != "providers" {
				t.Errorf("scope = %s.%s", evt.Tenant, evt.Collection)
			}
			if evt.Severity != tt.severity || evt.Outcome != ah.OutcomeSuccess {
				t.Errorf("severity/outcome = %s/%s", evt.Severity, evt.Outcome)
			}
			if evt.Category != ah.CategoryDocument {
				t.Errorf("category = %s", evt.Category)
			}
		})
	}
}

func TestExtension_RecordsFailures(t *testing.T) {
	rec := &mockRecorder{}
	pr := newProvider(t, ah.New(rec))

	_, err := pr.Insert(context.Background(), provider.InsertParams{
		Scope:   testScope,
		Payload: provider.Batch(bson.M{"a": 1}),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}

	evt := rec.findByAction(ah.ActionOperationFailed)
	if evt == nil {
		t.Fatal("no operation.failed event")
	}
	if evt.Severity != ah.SeverityCritical || evt.Outcome != ah.OutcomeFailure {
		t.Errorf("severity/outcome = %s/%s", evt.Severity, evt.Outcome)
	}
	if evt.Metadata["operation"] != "insert" || evt.Metadata["kind"] != "validation" {
		t.Errorf("metadata = %v", evt.Metadata)
	}
	if evt.Reason == "" {
		t.Error("reason is empty")
	}
}

func TestExtension_WithActionsFilters(t *testing.T) {
	rec := &mockRecorder{}
	pr := newProvider(t, ah.New(rec, ah.WithActions(ah.ActionDocumentsRemoved)))
	ctx := context.Background()

	if _, err := pr.InsertMany(ctx, provider.InsertManyParams{
		Scope: testScope, Payload: provider.Batch(bson.M{"a": 1}, bson.M{"a": 2}),
	}); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	if _, err := pr.RemoveMultiple(ctx, provider.RemoveParams{Scope: testScope}); err != nil {
		t.Fatalf("RemoveMultiple: %v", err)
	}

	if rec.count() != 1 {
		t.Fatalf("expected 1 event, got %d", rec.count())
	}
	evt := rec.findByAction(ah.ActionDocumentsRemoved)
	if evt == nil || evt.Metadata["deleted"] != int64(2) {
		t.Fatalf("event = %+v", evt)
	}
}

func TestExtension_RecorderErrorIsSwallowed(t *testing.T) {
	e := ah.New(ah.RecorderFunc(func(context.Context, *ah.AuditEvent) error {
		return errors.New("backend down")
	}))
	if err := e.OnDocumentsRemoved(context.Background(), testScope, 3); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllActions(t *testing.T) {
	if got := len(ah.AllActions()); got != 6 {
		t.Fatalf("expected 6 actions, got %d", got)
	}
}
