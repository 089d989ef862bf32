package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/tenantstore/id"
)

func TestNew(t *testing.T) {
	i := id.New(id.PrefixDocument)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixDocument {
		t.Errorf("expected prefix %q, got %q", id.PrefixDocument, i.Prefix())
	}
}

func TestGenerate(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for range 100 {
		s := id.Generate()
		if !strings.HasPrefix(s, "doc_") {
			t.Fatalf("expected doc_ prefix, got %q", s)
		}
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate id %q", s)
		}
		seen[s] = struct{}{}
	}
}

func TestGenerator(t *testing.T) {
	gen := id.Generator("user")
	if got := gen(); !strings.HasPrefix(got, "user_") {
		t.Errorf("expected user_ prefix, got %q", got)
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := id.New(id.PrefixDocument)
	parsed, err := id.ParseWithPrefix(original.String(), id.PrefixDocument)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage", "not-a-typeid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.Parse(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}

	if _, err := id.ParseWithPrefix(id.New("user").String(), id.PrefixDocument); err == nil {
		t.Error("expected prefix mismatch error")
	}
}

func TestMarshalText(t *testing.T) {
	var nilID id.ID
	b, err := nilID.MarshalText()
	if err != nil || len(b) != 0 {
		t.Fatalf("nil marshal = %q, %v", b, err)
	}

	original := id.New(id.PrefixDocument)
	b, err = original.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back id.ID
	if err := back.UnmarshalText(b); err != nil {
		t.Fatal(err)
	}
	if back.String() != original.String() {
		t.Errorf("got %q, want %q", back.String(), original.String())
	}
}
