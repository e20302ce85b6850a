package storage

import (
	"fmt"

	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

// Router dispatches every Store operation to whichever backend Manages
// the operand location's affinity, per spec.md §4.1's own "manages | loc
// | bool (does this backend own this affinity?)" op: a VM never talks to
// LOCAL/SHARED/FUNCTION/PRIMITIVE/OBJECTPROP storage directly, it talks
// to a Router over all of them.
type Router struct {
	backends []Store
}

func NewRouter(backends ...Store) *Router {
	return &Router{backends: backends}
}

func (r *Router) backendFor(affinity values.Affinity) (Store, error) {
	for _, b := range r.backends {
		if b.Manages(affinity) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("storage: no backend manages affinity %s", affinity)
}

func (r *Router) Manages(affinity values.Affinity) bool {
	_, err := r.backendFor(affinity)
	return err == nil
}

func (r *Router) Load(loc values.Location) (*values.Value, bool, error) {
	b, err := r.backendFor(loc.Affinity)
	if err != nil {
		return nil, false, err
	}
	return b.Load(loc)
}

func (r *Router) Store(loc values.Location, v *values.Value) error {
	b, err := r.backendFor(loc.Affinity)
	if err != nil {
		return err
	}
	return b.Store(loc, v)
}

func (r *Router) Has(loc values.Location) (bool, error) {
	b, err := r.backendFor(loc.Affinity)
	if err != nil {
		return false, err
	}
	return b.Has(loc)
}

func (r *Router) Drop(loc values.Location) error {
	b, err := r.backendFor(loc.Affinity)
	if err != nil {
		return err
	}
	return b.Drop(loc)
}

func (r *Router) TypeOf(loc values.Location) (*types.Type, bool, error) {
	b, err := r.backendFor(loc.Affinity)
	if err != nil {
		return nil, false, err
	}
	return b.TypeOf(loc)
}

func (r *Router) Typify(loc values.Location, t *types.Type) error {
	b, err := r.backendFor(loc.Affinity)
	if err != nil {
		return err
	}
	return b.Typify(loc, t)
}

func (r *Router) Acquire(loc values.Location) (Lock, bool, error) {
	b, err := r.backendFor(loc.Affinity)
	if err != nil {
		return nil, false, err
	}
	return b.Acquire(loc)
}

func (r *Router) Clear() error {
	for _, b := range r.backends {
		if err := b.Clear(); err != nil {
			return err
		}
	}
	return nil
}

// Copy deep-copies every backend (the in-process ones; a distributed
// backend's Copy is itself, per SQLBackend.Copy) into a fresh Router,
// for the `with`/subroutine isolation spec.md's storage section implies.
func (r *Router) Copy() (Store, error) {
	copied := make([]Store, len(r.backends))
	for i, b := range r.backends {
		c, err := b.Copy()
		if err != nil {
			return nil, err
		}
		copied[i] = c
	}
	return NewRouter(copied...), nil
}
