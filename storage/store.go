// Package storage implements the uniform storage abstraction of spec.md
// §4.1: a small Store interface that every LOCATION affinity is served
// behind, plus the concrete backends — an in-process map for LOCAL/
// FUNCTION/PRIMITIVE/OBJECTPROP locations, and a SQL-backed distributed
// table standing in for SHARED locations that must be visible across
// worker processes.
//
// Grounded on pkg/pdo's Driver/Conn split (one interface, several backend
// implementations selected by name) but replacing PDO's prepared-
// statement/result-set surface with the minimal get/set/type/lock surface
// spec.md §4.1 actually calls for.
package storage

import (
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

// Lock is a handle on a non-blocking lock acquired via Store.Acquire. It
// satisfies scope.Releaser structurally, so a held lock can be tracked on
// the scope that acquired it without storage importing package scope.
type Lock interface {
	Release() error
}

// Store is the uniform interface every storage backend implements,
// regardless of which LOCATION affinity it serves (spec.md §4.1).
type Store interface {
	// Manages reports whether this backend serves the given affinity.
	Manages(affinity values.Affinity) bool

	// Load reads the value currently bound to loc. ok is false if loc has
	// never been stored.
	Load(loc values.Location) (v *values.Value, ok bool, err error)

	// Store binds v to loc, creating or overwriting it.
	Store(loc values.Location, v *values.Value) error

	// Has reports whether loc currently has a bound value.
	Has(loc values.Location) (bool, error)

	// Drop removes loc's binding entirely.
	Drop(loc values.Location) error

	// TypeOf reports the declared type of loc's current value.
	TypeOf(loc values.Location) (t *types.Type, ok bool, err error)

	// Typify narrows loc's declared type without changing its value; used
	// by the `typify` opcode to apply a stricter, checked type annotation.
	Typify(loc values.Location, t *types.Type) error

	// Acquire attempts to take a non-blocking lock on loc. acquired is
	// false if someone else already holds it; the caller is expected to
	// sleep and retry rather than block inside Acquire (spec.md §4.1).
	Acquire(loc values.Location) (lock Lock, acquired bool, err error)

	// Clear removes every binding this backend holds.
	Clear() error

	// Copy returns an independent backend pre-populated with this
	// backend's current bindings, used when a call needs its own private
	// LOCAL/FUNCTION namespace seeded from the caller's.
	Copy() (Store, error)
}
