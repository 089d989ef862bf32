package scope_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/tenantstore/scope"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       scope.Scope
		wantErr error
	}{
		{"ok", scope.Scope{Tenant: "acme", Collection: "providers"}, nil},
		{"no tenant", scope.Scope{Collection: "providers"}, scope.ErrNoTenant},
		{"no collection", scope.Scope{Tenant: "acme"}, scope.ErrNoCollection},
		{"dotted tenant", scope.Scope{Tenant: "ac.me", Collection: "c"}, scope.ErrInvalidName},
		{"system collection", scope.Scope{Tenant: "acme", Collection: "system.users"}, scope.ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWithFrom(t *testing.T) {
	ctx := context.Background()
	if _, ok := scope.From(ctx); ok {
		t.Fatal("expected no scope on empty context")
	}

	want := scope.Scope{Tenant: "acme", Collection: "providers"}
	got, ok := scope.From(scope.With(ctx, want))
	if !ok {
		t.Fatal("expected scope on context")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestWithCollection(t *testing.T) {
	s := scope.Scope{Tenant: "acme", Collection: "providers"}
	d := s.WithCollection("departments")
	if d.Tenant != "acme" || d.Collection != "departments" {
		t.Errorf("unexpected scope %+v", d)
	}
	if s.Collection != "providers" {
		t.Error("original scope mutated")
	}
	if d.String() != "acme.departments" {
		t.Errorf("String() = %q", d.String())
	}
}
