package types

import "sync"

// ObjectTypeID indexes into an Arena. Using an index instead of a pointer
// to the parent/property types is what lets an OBJECT type embed itself in
// one of its own property types (a class referencing its own type, e.g. a
// linked-list node's "next" property) without forming a cyclic Go pointer
// graph — see spec.md §9's design note on recursive object types.
type ObjectTypeID uint64

// ObjectType is an open (or, once Final is set, closed) structural record
// type: a set of named properties, an optional parent, and a finality
// flag. It is built incrementally by otypeinit/otypeprop/otypedel and
// frozen by otypefinalize (spec.md §4.3).
type ObjectType struct {
	ID       ObjectTypeID
	Parent   ObjectTypeID // 0 means "no parent"
	HasParent bool
	Props    map[string]*Type
	Final    bool
}

// Arena owns every ObjectType created by a VM instance, grounded on
// registry.Class's name-keyed map in registry/registry.go but indexed by
// a monotonic id instead of a name so that anonymous/recursive object
// types don't need synthetic names.
type Arena struct {
	mu    sync.Mutex
	next  ObjectTypeID
	types map[ObjectTypeID]*ObjectType
}

func NewArena() *Arena {
	return &Arena{next: 1, types: make(map[ObjectTypeID]*ObjectType)}
}

// New allocates a fresh, open object type (otypeinit).
func (a *Arena) New() ObjectTypeID {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	a.types[id] = &ObjectType{ID: id, Props: make(map[string]*Type)}
	return id
}

func (a *Arena) Get(id ObjectTypeID) (*ObjectType, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ot, ok := a.types[id]
	return ot, ok
}

// SetProp declares or overwrites a property on an open object type
// (otypeprop). Returns false if the type is already finalized.
func (a *Arena) SetProp(id ObjectTypeID, name string, t *Type) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	ot, ok := a.types[id]
	if !ok || ot.Final {
		return false
	}
	ot.Props[name] = t
	return true
}

// DelProp removes a property from an open object type (otypedel).
func (a *Arena) DelProp(id ObjectTypeID, name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	ot, ok := a.types[id]
	if !ok || ot.Final {
		return false
	}
	delete(ot.Props, name)
	return true
}

// SetParent records a parent object type for structural subset checks and
// property inheritance.
func (a *Arena) SetParent(id, parent ObjectTypeID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	ot, ok := a.types[id]
	if !ok || ot.Final {
		return false
	}
	ot.Parent = parent
	ot.HasParent = true
	return true
}

// Finalize freezes an object type (otypefinalize) so no further property
// mutation is allowed, and resolves any THIS placeholders embedded in its
// property types into a concrete self-reference (ObjectOf(id)), per
// spec.md §4.3 ("Finalization freezes an object type ... and resolves any
// THIS placeholders within it").
func (a *Arena) Finalize(id ObjectTypeID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	ot, ok := a.types[id]
	if !ok {
		return false
	}
	self := &Type{Kind: KindObject, Obj: id}
	for name, t := range ot.Props {
		ot.Props[name] = resolveThis(t, self)
	}
	ot.Final = true
	return true
}

func resolveThis(t *Type, self *Type) *Type {
	if t == nil {
		return nil
	}
	if t.Kind == KindThis {
		return self
	}
	switch t.Kind {
	case KindMap, KindEnumerable, KindStream, KindResource, KindLambda0:
		return &Type{Kind: t.Kind, Elem: resolveThis(t.Elem, self)}
	case KindLambda1:
		return &Type{Kind: t.Kind, Param: resolveThis(t.Param, self), Elem: resolveThis(t.Elem, self)}
	default:
		return t
	}
}

// allProps walks the parent chain, child properties winning over parent
// properties with the same name.
func (a *Arena) allProps(id ObjectTypeID) map[string]*Type {
	ot, ok := a.types[id]
	if !ok {
		return nil
	}
	out := map[string]*Type{}
	if ot.HasParent {
		for k, v := range a.allProps(ot.Parent) {
			out[k] = v
		}
	}
	for k, v := range ot.Props {
		out[k] = v
	}
	return out
}

// IsSubset implements OBJECT assignability (spec.md §3.1): a is assignable
// to b iff every property b declares exists on a with an assignable type,
// walking a's parent chain.
func (a *Arena) IsSubset(child, parent ObjectTypeID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if child == parent {
		return true
	}
	childProps := a.allProps(child)
	parentProps := a.allProps(parent)
	if childProps == nil || parentProps == nil {
		return false
	}
	for name, pt := range parentProps {
		ct, ok := childProps[name]
		if !ok || !ct.AssignableTo(pt, a) {
			return false
		}
	}
	return true
}

// Subset reports whether candidate's declared properties are all present,
// with assignable types, on the object described by against — the
// user-visible `otypesubset` opcode.
func (a *Arena) Subset(candidate, against ObjectTypeID) bool {
	return a.IsSubset(candidate, against)
}
