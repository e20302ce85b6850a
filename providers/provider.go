// Package providers is the Prologue plug-in surface spec.md's GLOSSARY
// names: a way for a VM to resolve a `values.Function` whose Backend names
// a provider rather than a user-defined `beginfn`. No concrete provider
// ships here — spec §1 places native-function libraries (math, string,
// file, etc.) out of scope — only the registration/lookup contract a host
// program wires concrete providers into.
//
// Grounded on runtime/extension.go's Extension/ExtensionRegistry factory
// pattern (name, version, dependency-ordered Register/Unregister) and
// runtime/function.go's Builtin handler signature, trimmed to the bare
// factory contract: a Provider contributes named callables, nothing else.
package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/svi-lang/svivm/values"
)

// Handler is a provider-backed callable. It receives the curried argument
// list a values.Function accumulated and returns a single Reference,
// mirroring runtime/function.go's Builtin signature.
type Handler func(args []*values.Value) (*values.Value, error)

// Provider contributes a named set of Handlers under one backend prefix,
// analogous to runtime/extension.go's Extension interface.
type Provider interface {
	Name() string
	LoadOrder() int
	Functions() map[string]Handler
}

// Registry collects Providers and resolves "backend:name" function
// references against them, grounded on runtime/extension.go's
// RuntimeRegistry (load-ordered registration, name-keyed lookup).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p, replacing any existing provider of the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Unregister removes a provider by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
}

// Names returns registered provider names in load order, lowest first.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		return r.providers[names[i]].LoadOrder() < r.providers[names[j]].LoadOrder()
	})
	return names
}

// Resolve looks up a handler by provider name and function name, the
// lookup a VM performs when a values.Function's Backend names a
// provider instead of the VM's own `beginfn` table.
func (r *Registry) Resolve(backend, name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[backend]
	if !ok {
		return nil, fmt.Errorf("providers: unknown provider %q", backend)
	}
	h, ok := p.Functions()[name]
	if !ok {
		return nil, fmt.Errorf("providers: %q has no function %q", backend, name)
	}
	return h, nil
}

// Invoke resolves and calls a function in one step, applying fn's already
// curried arguments ahead of any additionally supplied args.
func (r *Registry) Invoke(fn *values.Function, args []*values.Value) (*values.Value, error) {
	h, err := r.Resolve(fn.Backend, fn.Name)
	if err != nil {
		return nil, err
	}
	all := make([]*values.Value, 0, len(fn.Curried)+len(args))
	all = append(all, fn.Curried...)
	all = append(all, args...)
	return h(all)
}
