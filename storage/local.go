package storage

import (
	"sync"

	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

type entry struct {
	value *values.Value
	typ   *types.Type
}

// Local is an in-process Store backing one or more of the non-distributed
// affinities (LOCAL, FUNCTION, PRIMITIVE, OBJECTPROP). Grounded on the
// teacher's general mutex-guarded-map pattern (runtime/ini.go's
// IniStorage, vm/output_buffer.go's OutputBufferStack) rather than a
// single specific file, since every teacher package reaches for this same
// shape for process-local state.
type Local struct {
	affinities map[values.Affinity]bool

	mu      sync.RWMutex
	entries map[values.Location]entry
	locks   map[values.Location]*sync.Mutex
}

// NewLocal creates a backend serving the given affinities.
func NewLocal(affinities ...values.Affinity) *Local {
	set := make(map[values.Affinity]bool, len(affinities))
	for _, a := range affinities {
		set[a] = true
	}
	return &Local{
		affinities: set,
		entries:    make(map[values.Location]entry),
		locks:      make(map[values.Location]*sync.Mutex),
	}
}

func (l *Local) Manages(affinity values.Affinity) bool { return l.affinities[affinity] }

func (l *Local) Load(loc values.Location) (*values.Value, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[loc]
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (l *Local) Store(loc values.Location, v *values.Value) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[loc]
	e.value = v
	if e.typ == nil {
		e.typ = v.TypeOf()
	}
	l.entries[loc] = e
	return nil
}

func (l *Local) Has(loc values.Location) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[loc]
	return ok, nil
}

func (l *Local) Drop(loc values.Location) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, loc)
	delete(l.locks, loc)
	return nil
}

func (l *Local) TypeOf(loc values.Location) (*types.Type, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[loc]
	if !ok {
		return nil, false, nil
	}
	return e.typ, true, nil
}

// Typify declares loc's type, creating the location with a VOID value if
// it has never been stored to yet (spec.md §4.1: "store" checks a value
// against a "prior typify", so typify must be usable to pre-declare a
// location before the first store into it).
func (l *Local) Typify(loc values.Location, t *types.Type) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[loc]
	if !ok {
		e.value = values.NewVoid()
	}
	e.typ = t
	l.entries[loc] = e
	return nil
}

func (l *Local) lockFor(loc values.Location) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[loc]
	if !ok {
		m = &sync.Mutex{}
		l.locks[loc] = m
	}
	return m
}

func (l *Local) Acquire(loc values.Location) (Lock, bool, error) {
	m := l.lockFor(loc)
	if !m.TryLock() {
		return nil, false, nil
	}
	return &localLock{mu: m}, true, nil
}

func (l *Local) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[values.Location]entry)
	l.locks = make(map[values.Location]*sync.Mutex)
	return nil
}

func (l *Local) Copy() (Store, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := NewLocal()
	for a := range l.affinities {
		out.affinities[a] = true
	}
	for loc, e := range l.entries {
		out.entries[loc] = e
	}
	return out, nil
}
