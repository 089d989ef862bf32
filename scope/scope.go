// Package scope carries the tenant context of an operation: which tenant
// namespace and which collection inside it.
//
// A Scope is resolved upstream (typically by request middleware) and passed
// into every provider call. With and From let upstream code carry it on a
// context.Context until the call site.
package scope

import (
	"context"
	"errors"
	"strings"
)

// Scope selects where an operation executes. The tenant maps to a MongoDB
// database and the collection to a collection inside it.
type Scope struct {
	Tenant     string `json:"tenant"`
	Collection string `json:"collection"`
}

var (
	ErrNoTenant     = errors.New("scope: tenant is required")
	ErrNoCollection = errors.New("scope: collection is required")
	ErrInvalidName  = errors.New("scope: invalid name")
)

// Validate reports whether both parts are present and usable as MongoDB
// database and collection names.
func (s Scope) Validate() error {
	if s.Tenant == "" {
		return ErrNoTenant
	}
	if s.Collection == "" {
		return ErrNoCollection
	}
	// Database names may not contain these characters on any platform.
	if strings.ContainsAny(s.Tenant, `/\. "$`+"\x00") {
		return errors.Join(ErrInvalidName, errors.New("tenant "+s.Tenant))
	}
	if strings.HasPrefix(s.Collection, "system.") || strings.ContainsAny(s.Collection, "$\x00") {
		return errors.Join(ErrInvalidName, errors.New("collection "+s.Collection))
	}
	return nil
}

// String returns "tenant.collection".
func (s Scope) String() string {
	return s.Tenant + "." + s.Collection
}

// WithCollection returns a copy of s targeting another collection of the
// same tenant.
func (s Scope) WithCollection(collection string) Scope {
	s.Collection = collection
	return s
}

type ctxKey struct{}

// With attaches s to ctx.
func With(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// From extracts the Scope attached by With.
func From(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(Scope)
	return s, ok
}
