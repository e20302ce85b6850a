// Package types implements the structural type lattice described in
// spec.md §3.1: intrinsic kinds, generic container types, nominal opaque
// types, and structural object types, plus the assignability relation A ≤ B
// that the storage and execution layers consult on every typed operation.
package types

import "fmt"

// Kind is the intrinsic tag of a Type.
type Kind byte

const (
	KindString Kind = iota
	KindNumber
	KindBoolean
	KindError
	KindVoid
	KindUnit
	KindType
	KindMap
	KindEnumerable
	KindStream
	KindLambda0
	KindLambda1
	KindResource
	KindAmbiguous
	KindOpaque
	KindObject
	KindThis
	KindContradiction
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "STRING"
	case KindNumber:
		return "NUMBER"
	case KindBoolean:
		return "BOOLEAN"
	case KindError:
		return "ERROR"
	case KindVoid:
		return "VOID"
	case KindUnit:
		return "UNIT"
	case KindType:
		return "TYPE"
	case KindMap:
		return "MAP"
	case KindEnumerable:
		return "ENUMERABLE"
	case KindStream:
		return "STREAM"
	case KindLambda0:
		return "LAMBDA0"
	case KindLambda1:
		return "LAMBDA1"
	case KindResource:
		return "RESOURCE"
	case KindAmbiguous:
		return "AMBIGUOUS"
	case KindOpaque:
		return "OPAQUE"
	case KindObject:
		return "OBJECT"
	case KindThis:
		return "THIS"
	case KindContradiction:
		return "CONTRADICTION"
	default:
		return "UNKNOWN"
	}
}

// Type is an immutable node in the type lattice. Primitive kinds and
// interned OPAQUE names are singletons (see String() ... Contradiction()
// and Opaque below); MAP,
// ENUMERABLE, STREAM, RESOURCE, LAMBDA0 and LAMBDA1 carry one or two
// element types; OBJECT carries an ObjectTypeID into the object-type
// arena (see objecttype.go) instead of embedding its properties directly,
// which is what lets recursive object types exist without a cyclic Go
// pointer graph.
type Type struct {
	Kind  Kind
	Name  string // OPAQUE name
	Elem  *Type  // MAP<V>, ENUMERABLE<T>, STREAM<T>, RESOURCE<T>, LAMBDA0<R>/LAMBDA1<_,R> result
	Param *Type  // LAMBDA1<P,R> parameter
	Obj   ObjectTypeID
}

var (
	singletonString        = &Type{Kind: KindString}
	singletonNumber        = &Type{Kind: KindNumber}
	singletonBoolean       = &Type{Kind: KindBoolean}
	singletonError         = &Type{Kind: KindError}
	singletonVoid          = &Type{Kind: KindVoid}
	singletonUnit          = &Type{Kind: KindUnit}
	singletonType          = &Type{Kind: KindType}
	singletonAmbiguous     = &Type{Kind: KindAmbiguous}
	singletonThis          = &Type{Kind: KindThis}
	singletonContradiction = &Type{Kind: KindContradiction}
)

func String() *Type        { return singletonString }
func Number() *Type        { return singletonNumber }
func Boolean() *Type       { return singletonBoolean }
func ErrorType() *Type     { return singletonError }
func Void() *Type          { return singletonVoid }
func Unit() *Type          { return singletonUnit }
func TypeType() *Type      { return singletonType }
func Ambiguous() *Type     { return singletonAmbiguous }
func This() *Type          { return singletonThis }
func Contradiction() *Type { return singletonContradiction }

func MapOf(v *Type) *Type        { return &Type{Kind: KindMap, Elem: v} }
func EnumerableOf(t *Type) *Type { return &Type{Kind: KindEnumerable, Elem: t} }
func StreamOf(t *Type) *Type     { return &Type{Kind: KindStream, Elem: t} }
func ResourceOf(t *Type) *Type   { return &Type{Kind: KindResource, Elem: t} }
func Lambda0(r *Type) *Type      { return &Type{Kind: KindLambda0, Elem: r} }
func Lambda1(p, r *Type) *Type   { return &Type{Kind: KindLambda1, Param: p, Elem: r} }

func ObjectOf(id ObjectTypeID) *Type { return &Type{Kind: KindObject, Obj: id} }

// opaqueRegistry interns OPAQUE<name> types by name, matching spec.md §3.1's
// "OPAQUE is interned by name".
var opaqueRegistry = map[string]*Type{}

// Opaque returns the interned OPAQUE type for name, creating it on first use.
func Opaque(name string) *Type {
	if t, ok := opaqueRegistry[name]; ok {
		return t
	}
	t := &Type{Kind: KindOpaque, Name: name}
	opaqueRegistry[name] = t
	return t
}

// AssignableTo implements the A ≤ B relation of spec.md §3.1.
func (a *Type) AssignableTo(b *Type, arena *Arena) bool {
	if a == nil || b == nil {
		return false
	}
	if b.Kind == KindAmbiguous {
		return true
	}
	if a.Kind == KindContradiction {
		// CONTRADICTION is never a valid runtime value (invariant, §3.1);
		// it is also never assignable to anything, including itself.
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindString, KindNumber, KindBoolean, KindError, KindVoid, KindUnit, KindType, KindThis:
		return true
	case KindMap, KindEnumerable, KindStream, KindResource:
		return a.Elem.AssignableTo(b.Elem, arena)
	case KindLambda0:
		return a.Elem.AssignableTo(b.Elem, arena)
	case KindLambda1:
		// Covariant in both the return type and the parameter type: the
		// source's assignability check treats parameters covariantly
		// rather than contravariantly, and spec.md §3.1 and §11/Open
		// Questions of SPEC_FULL.md direct us to preserve that, not
		// "fix" it to the textbook contravariant rule.
		return a.Elem.AssignableTo(b.Elem, arena) && a.Param.AssignableTo(b.Param, arena)
	case KindOpaque:
		return a.Name == b.Name
	case KindObject:
		if arena == nil {
			return a.Obj == b.Obj
		}
		return arena.IsSubset(a.Obj, b.Obj)
	default:
		return false
	}
}

// String renders a type for diagnostics and Wire tags.
func (t *Type) String() string {
	if t == nil {
		return "<nil type>"
	}
	switch t.Kind {
	case KindMap:
		return fmt.Sprintf("MAP<%s>", t.Elem)
	case KindEnumerable:
		return fmt.Sprintf("ENUMERABLE<%s>", t.Elem)
	case KindStream:
		return fmt.Sprintf("STREAM<%s>", t.Elem)
	case KindResource:
		return fmt.Sprintf("RESOURCE<%s>", t.Elem)
	case KindLambda0:
		return fmt.Sprintf("LAMBDA0<%s>", t.Elem)
	case KindLambda1:
		return fmt.Sprintf("LAMBDA1<%s,%s>", t.Param, t.Elem)
	case KindOpaque:
		return fmt.Sprintf("OPAQUE<%s>", t.Name)
	case KindObject:
		return fmt.Sprintf("OBJECT#%d", t.Obj)
	default:
		return t.Kind.String()
	}
}
