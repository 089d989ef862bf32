package tenantstore_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/tenantstore"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("E11000 duplicate key")

	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     tenantstore.Kind
	}{
		{"connection", tenantstore.ConnectionError("acquire", tenantstore.ErrPoolExhausted), tenantstore.ErrConnection, tenantstore.KindConnection},
		{"validation", tenantstore.ValidationError("insert", "payload is a batch of %d documents", 2), tenantstore.ErrValidation, tenantstore.KindValidation},
		{"execution", tenantstore.ExecutionError("insert", cause), tenantstore.ErrExecution, tenantstore.KindExecution},
	}
	sentinels := []error{tenantstore.ErrConnection, tenantstore.ErrValidation, tenantstore.ErrExecution}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range sentinels {
				if got, want := errors.Is(tt.err, s), s == tt.sentinel; got != want {
					t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, s, got, want)
				}
			}
			if got := tenantstore.KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf = %v, want %v", got, tt.kind)
			}
			if got := tenantstore.KindOf(fmt.Errorf("outer: %w", tt.err)); got != tt.kind {
				t.Errorf("KindOf(wrapped) = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("server selection timeout")
	err := tenantstore.ExecutionError("find", cause)

	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable through errors.Is")
	}
	var e *tenantstore.Error
	if !errors.As(err, &e) {
		t.Fatal("errors.As failed")
	}
	if e.Op != "find" || e.Err != cause {
		t.Fatalf("error = %+v", e)
	}
	if want := "tenantstore: find: execution error: server selection timeout"; err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}

	pool := tenantstore.ConnectionError("acquire", tenantstore.ErrPoolClosed)
	if !errors.Is(pool, tenantstore.ErrPoolClosed) {
		t.Fatal("pool sentinel not reachable")
	}
}

func TestValidationErrorWrapsWithVerb(t *testing.T) {
	inner := errors.New("scope: tenant is required")
	err := tenantstore.ValidationError("count", "%w", inner)
	if !errors.Is(err, inner) || !errors.Is(err, tenantstore.ErrValidation) {
		t.Fatalf("err = %v, want validation wrapping inner", err)
	}
}

func TestKindOfForeignError(t *testing.T) {
	if got := tenantstore.KindOf(errors.New("plain")); got != 0 {
		t.Fatalf("KindOf = %v, want 0", got)
	}
	if got := tenantstore.KindOf(nil); got != 0 {
		t.Fatalf("KindOf(nil) = %v, want 0", got)
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[tenantstore.Kind]string{
		tenantstore.KindConnection: "connection",
		tenantstore.KindValidation: "validation",
		tenantstore.KindExecution:  "execution",
	} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
