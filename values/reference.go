// Package values implements the runtime Reference union described in
// spec.md §3.2: the tagged set of values an SVI program can push, store,
// or pass — literals, locations, functions, streams, objects, resources,
// and the VM-internal context/job/return-map handles the queue uses.
//
// References are immutable by contract; equality is structural except for
// the mutable containers (Enumeration, Map, Object), whose identity
// persists until unreachable, matching spec.md §3.2's lifetime rule.
package values

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/svi-lang/svivm/types"
)

// Tag identifies which Reference variant a Value holds.
type Tag byte

const (
	TagLocation Tag = iota
	TagType
	TagOType
	TagObject
	TagString
	TagNumber
	TagBoolean
	TagFunction
	TagStream
	TagResource
	TagEnumeration
	TagMap
	TagVoid
	TagContextID
	TagJobID
	TagReturnValueMap
)

// Affinity is the storage class of a LOCATION reference (spec.md GLOSSARY).
type Affinity byte

const (
	AffinityLocal Affinity = iota
	AffinityShared
	AffinityFunction
	AffinityPrimitive
	AffinityObjectProp
)

func (a Affinity) String() string {
	switch a {
	case AffinityLocal:
		return "LOCAL"
	case AffinityShared:
		return "SHARED"
	case AffinityFunction:
		return "FUNCTION"
	case AffinityPrimitive:
		return "PRIMITIVE"
	case AffinityObjectProp:
		return "OBJECTPROP"
	default:
		return "UNKNOWN"
	}
}

// Location names a storage slot. It is a value type (not itself a
// Reference) so that Storage backends (component F) can use it directly
// as a map key; values.Value{Tag: TagLocation} wraps one.
type Location struct {
	Affinity Affinity
	Name     string
}

func (l Location) String() string {
	return fmt.Sprintf("$%s:%s", strings.ToLower(l.Affinity.String())[:1], l.Name)
}

// Value is the single Reference type every VM-visible datum is boxed in,
// adapted from values/value.go's Type+Data union (the teacher's PHP value
// representation) but reshaped around the fixed Tag set spec.md §3.2
// enumerates, each carrying its declared Type per the "every runtime value
// is typed" invariant of spec.md §3.1.
type Value struct {
	Tag     Tag
	Decl    *types.Type
	Loc     Location
	Str     string
	Num     float64
	Bool    bool
	Fn      *Function
	StreamID uint64
	Res     *Resource
	Enum    *Enumeration
	Map     *Map
	Obj     *Object
	OType   types.ObjectTypeID
	Typ     *types.Type // payload when Tag == TagType
	ContextID uint64
	JobID     JobIdentity
	RVMap     *ReturnValueMap
}

// JobIdentity is the queue's job handle as seen from inside the VM
// (spec.md §3.2's JOB_ID variant); queue.JobID is the richer form the
// queue package itself uses.
type JobIdentity struct {
	Sequence uint64
	External string // uuid.UUID.String(), see queue.JobID
}

func NewVoid() *Value { return &Value{Tag: TagVoid, Decl: types.Void()} }

func NewString(s string) *Value { return &Value{Tag: TagString, Decl: types.String(), Str: s} }

func NewNumber(n float64) *Value { return &Value{Tag: TagNumber, Decl: types.Number(), Num: n} }

func NewBoolean(b bool) *Value { return &Value{Tag: TagBoolean, Decl: types.Boolean(), Bool: b} }

func NewType(t *types.Type) *Value { return &Value{Tag: TagType, Decl: types.TypeType(), Typ: t} }

func NewLocation(loc Location, declared *types.Type) *Value {
	return &Value{Tag: TagLocation, Decl: declared, Loc: loc}
}

func NewOType(id types.ObjectTypeID) *Value {
	return &Value{Tag: TagOType, Decl: types.TypeType(), OType: id}
}

func NewContextID(id uint64) *Value {
	return &Value{Tag: TagContextID, Decl: types.Opaque("CONTEXT"), ContextID: id}
}

func NewJobID(j JobIdentity) *Value {
	return &Value{Tag: TagJobID, Decl: types.Opaque("JOB"), JobID: j}
}

func NewReturnValueMapValue(rvm *ReturnValueMap) *Value {
	return &Value{Tag: TagReturnValueMap, Decl: types.MapOf(types.Ambiguous()), RVMap: rvm}
}

// TypeOf returns the declared type carried by the reference (component A
// consults this for every assignability check).
func (v *Value) TypeOf() *types.Type {
	if v == nil {
		return types.Void()
	}
	return v.Decl
}

// IsVoid reports whether v is the VOID reference.
func (v *Value) IsVoid() bool { return v != nil && v.Tag == TagVoid }

// Equal implements the structural equality rule of spec.md §3.2. Functions
// compare equal by backend+name+curried arguments, per spec.md §8
// property 3's parenthetical.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Tag != o.Tag {
		return false
	}
	switch v.Tag {
	case TagVoid:
		return true
	case TagString:
		return v.Str == o.Str
	case TagNumber:
		return v.Num == o.Num
	case TagBoolean:
		return v.Bool == o.Bool
	case TagLocation:
		return v.Loc == o.Loc
	case TagType:
		return v.Typ.String() == o.Typ.String()
	case TagOType:
		return v.OType == o.OType
	case TagFunction:
		return v.Fn.Equal(o.Fn)
	case TagStream:
		return v.StreamID == o.StreamID
	case TagContextID:
		return v.ContextID == o.ContextID
	case TagJobID:
		return v.JobID == o.JobID
	case TagEnumeration, TagMap, TagObject, TagResource, TagReturnValueMap:
		// Mutable containers compare by identity, matching spec.md §3.2's
		// "identity preserved until no longer reachable" lifetime rule.
		return v.Enum == o.Enum && v.Map == o.Map && v.Obj == o.Obj && v.Res == o.Res && v.RVMap == o.RVMap
	default:
		return false
	}
}

func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	switch v.Tag {
	case TagVoid:
		return "void"
	case TagString:
		return v.Str
	case TagNumber:
		return formatNumber(v.Num)
	case TagBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case TagLocation:
		return v.Loc.String()
	case TagType:
		return v.Typ.String()
	case TagFunction:
		return v.Fn.String()
	case TagEnumeration:
		return v.Enum.String()
	case TagMap:
		return v.Map.String()
	case TagObject:
		return v.Obj.String()
	default:
		return fmt.Sprintf("<%T>", v.Tag)
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

// Function wraps a callable reference, possibly partially applied
// (curried) with an ordered list of already-bound argument references,
// per spec.md §3.2.
type Function struct {
	Backend string // function-table entry name, or a provider-qualified name
	Name    string
	Params  []*types.Type
	Return  *types.Type
	Curried []*Value
}

func (f *Function) Curry(arg *Value) *Function {
	next := make([]*Value, len(f.Curried), len(f.Curried)+1)
	copy(next, f.Curried)
	next = append(next, arg)
	return &Function{Backend: f.Backend, Name: f.Name, Params: f.Params, Return: f.Return, Curried: next}
}

func (f *Function) Equal(o *Function) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.Backend != o.Backend || f.Name != o.Name || len(f.Curried) != len(o.Curried) {
		return false
	}
	for i := range f.Curried {
		if !f.Curried[i].Equal(o.Curried[i]) {
			return false
		}
	}
	return true
}

func (f *Function) String() string {
	return fmt.Sprintf("f:%s(%d curried)", f.Name, len(f.Curried))
}

// Resource is an externally-backed value (spec.md §4.6's Fabric payload,
// or a native-provider handle); ops are dispatched by name to keep
// Resource generic across backend kinds without an import cycle back into
// storage/streams.
type Resource struct {
	Kind       string
	OwnerNode  string
	Replicable bool
	Invoke     func(op string, args []*Value) (*Value, error)
}

// Enumeration is SVI's ordered, homogeneous list container.
type Enumeration struct {
	mu       sync.Mutex
	ElemType *types.Type
	items    []*Value
}

func NewEnumeration(elem *types.Type) *Enumeration {
	return &Enumeration{ElemType: elem}
}

func (e *Enumeration) Append(v *Value) { e.mu.Lock(); e.items = append(e.items, v); e.mu.Unlock() }

func (e *Enumeration) Prepend(v *Value) {
	e.mu.Lock()
	e.items = append([]*Value{v}, e.items...)
	e.mu.Unlock()
}

func (e *Enumeration) Len() int { e.mu.Lock(); defer e.mu.Unlock(); return len(e.items) }

func (e *Enumeration) Get(i int) (*Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.items) {
		return nil, false
	}
	return e.items[i], true
}

func (e *Enumeration) Set(i int, v *Value) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.items) {
		return false
	}
	e.items[i] = v
	return true
}

func (e *Enumeration) Concat(o *Enumeration) *Enumeration {
	e.mu.Lock()
	o.mu.Lock()
	defer e.mu.Unlock()
	defer o.mu.Unlock()
	out := NewEnumeration(e.ElemType)
	out.items = append(append([]*Value{}, e.items...), o.items...)
	return out
}

func (e *Enumeration) Snapshot() []*Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Value, len(e.items))
	copy(out, e.items)
	return out
}

func (e *Enumeration) String() string {
	parts := make([]string, 0, len(e.items))
	for _, v := range e.Snapshot() {
		parts = append(parts, v.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Map is SVI's string-keyed container (spec.md §4.3: "Keys are strings").
type Map struct {
	mu       sync.Mutex
	ElemType *types.Type
	entries  map[string]*Value
}

func NewMap(elem *types.Type) *Map {
	return &Map{ElemType: elem, entries: make(map[string]*Value)}
}

func (m *Map) Set(key string, v *Value) { m.mu.Lock(); m.entries[key] = v; m.mu.Unlock() }

func (m *Map) Get(key string) (*Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *Map) Len() int { m.mu.Lock(); defer m.mu.Unlock(); return len(m.entries) }

func (m *Map) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Map) String() string {
	keys := m.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, _ := m.Get(k)
		parts = append(parts, fmt.Sprintf("%q: %s", k, v.String()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Object is an instance of a finalized object type.
type Object struct {
	mu    sync.Mutex
	OType types.ObjectTypeID
	props map[string]*Value
}

func NewObject(ot types.ObjectTypeID) *Object {
	return &Object{OType: ot, props: make(map[string]*Value)}
}

func (o *Object) Set(name string, v *Value) { o.mu.Lock(); o.props[name] = v; o.mu.Unlock() }

func (o *Object) Get(name string) (*Value, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.props[name]
	return v, ok
}

// Snapshot returns a copy of the object's current property set, used by
// package wire to serialize an object by value.
func (o *Object) Snapshot() map[string]*Value {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]*Value, len(o.props))
	for k, v := range o.props {
		out[k] = v
	}
	return out
}

func (o *Object) String() string {
	return fmt.Sprintf("object#%d", o.OType)
}

// ReturnValueMap collects job results keyed by their original submission
// index, which is how `enumerate` (spec.md §4.3, §8 property 5) preserves
// collection order even though element jobs may complete out of order.
type ReturnValueMap struct {
	mu      sync.Mutex
	results map[int]*Value
}

func NewReturnValueMap() *ReturnValueMap {
	return &ReturnValueMap{results: make(map[int]*Value)}
}

func (r *ReturnValueMap) Put(index int, v *Value) {
	r.mu.Lock()
	r.results[index] = v
	r.mu.Unlock()
}

func (r *ReturnValueMap) Get(index int) (*Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.results[index]
	return v, ok
}

func (r *ReturnValueMap) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

// Ordered copies the map into a slice of length n without clearing it; an
// index in [0,n) that was never filled is nil. It assumes every index in
// [0,n) has been filled (the caller — vm.execEnumerate — is responsible
// for waiting until that holds, typically via a queue drain barrier).
func (r *ReturnValueMap) Ordered(n int) []*Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Value, n)
	for i := 0; i < n; i++ {
		out[i] = r.results[i]
	}
	return out
}
