// Package resource is a named registry for shared handles such as
// providers, so request handlers can look up "db" instead of threading
// a provider through every constructor.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicate is returned by Add when a name is already registered.
var ErrDuplicate = errors.New("resource: duplicate name")

// Closer is implemented by resources that hold connections. Close closes
// every registered Closer.
type Closer interface {
	Close(ctx context.Context) error
}

// Entry pairs a resource with its name.
type Entry[T any] struct {
	Name     string
	Resource T
}

// Registry holds named resources of type T. It is safe for concurrent use.
type Registry[T any] struct {
	mu        sync.RWMutex
	resources map[string]T
}

// New returns a registry holding the given entries.
func New[T any](entries ...Entry[T]) (*Registry[T], error) {
	r := &Registry[T]{resources: make(map[string]T, len(entries))}
	if err := r.AddMultiple(entries...); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the resource registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.resources[name]
	return v, ok
}

// MustGet is Get for wiring code; it panics when name is unknown.
func (r *Registry[T]) MustGet(name string) T {
	v, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("resource: %q not registered", name))
	}
	return v
}

// Add registers a resource under name.
func (r *Registry[T]) Add(name string, res T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(name, res)
}

// AddMultiple registers every entry, or none of them if any name clashes.
func (r *Registry[T]) AddMultiple(entries ...Entry[T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicate, e.Name)
		}
		if _, dup := r.resources[e.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicate, e.Name)
		}
		if e.Name == "" {
			return errors.New("resource: name is required")
		}
		seen[e.Name] = struct{}{}
	}
	for _, e := range entries {
		r.resources[e.Name] = e.Resource
	}
	return nil
}

func (r *Registry[T]) add(name string, res T) error {
	if name == "" {
		return errors.New("resource: name is required")
	}
	if _, dup := r.resources[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	r.resources[name] = res
	return nil
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resources))
	for n := range r.resources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close closes every resource implementing Closer, in name order, and
// empties the registry.
func (r *Registry[T]) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.resources))
	for n := range r.resources {
		names = append(names, n)
	}
	sort.Strings(names)

	var errs []error
	for _, n := range names {
		if c, ok := any(r.resources[n]).(Closer); ok {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("resource: close %q: %w", n, err))
			}
		}
	}
	clear(r.resources)
	return errors.Join(errs...)
}
