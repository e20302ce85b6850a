// Package scope implements the dynamic scope chain and call-stack
// machinery of spec.md §3.4/§4.2: parent-linked scope nodes that resolve
// names by walking outward, optional call-frame metadata for entering and
// returning from calls, and the exception handler stack each scope
// carries.
//
// Grounded on vm/call_stack.go's CallFrame/CallStackManager (a flat,
// mutex-guarded slice of frames) but reshaped into an explicit
// parent-linked tree: spec.md §3.4's "shadowing in a child does not
// overwrite the parent's binding" invariant needs independent per-scope
// binding maps chained by pointer, not a flat stack of frames that all
// share one variable table.
package scope

import (
	"fmt"
	"sync"

	"github.com/svi-lang/svivm/values"
)

// Releaser is satisfied by any storage lock handle; kept minimal here so
// package scope never needs to import package storage.
type Releaser interface {
	Release() error
}

// Scope is one node of the dynamic call stack (spec.md §3.4).
type Scope struct {
	ID       uint64
	Parent   *Scope
	Call     *values.Function // the call this scope was entered for, if any
	hasReturnTo bool
	returnTo int

	mu       sync.Mutex
	bindings map[string]values.Location
	handlers []Handler

	IsExceptionFrame bool
	CaptureReturn    bool
	ReturnValue      *values.Value

	heldLocks []Releaser
}

func newScope(id uint64, parent *Scope) *Scope {
	return &Scope{ID: id, Parent: parent, bindings: make(map[string]values.Location)}
}

// Bind introduces or shadows a name in this scope only.
func (s *Scope) Bind(name string, loc values.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[name] = loc
}

// LocalLookup checks only this scope's own bindings.
func (s *Scope) LocalLookup(name string) (values.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.bindings[name]
	return loc, ok
}

// BindingsSnapshot copies this scope's own name→location map, used by
// package wire to serialize a scope for migration.
func (s *Scope) BindingsSnapshot() map[string]values.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]values.Location, len(s.bindings))
	for k, v := range s.bindings {
		out[k] = v
	}
	return out
}

// TrackLock remembers a lock acquired while this scope was active so that
// ExitScope can release it unconditionally, guaranteeing release on scope
// exit per spec.md §4.1 ("the VM tracks which locks it holds to allow
// idempotent unlock and guarantee release on scope exit").
func (s *Scope) TrackLock(r Releaser) {
	s.mu.Lock()
	s.heldLocks = append(s.heldLocks, r)
	s.mu.Unlock()
}

func (s *Scope) releaseAllLocks() {
	s.mu.Lock()
	locks := s.heldLocks
	s.heldLocks = nil
	s.mu.Unlock()
	for _, l := range locks {
		_ = l.Release()
	}
}

// SetReturnTo records the program counter execution should resume at once
// this call scope finishes (spec.md §4.2's jump_call).
func (s *Scope) SetReturnTo(pc int) {
	s.returnTo = pc
	s.hasReturnTo = true
}

func (s *Scope) ReturnTo() (int, bool) { return s.returnTo, s.hasReturnTo }

func (s *Scope) clearReturnTo() { s.hasReturnTo = false }

func (s *Scope) String() string {
	return fmt.Sprintf("scope#%d", s.ID)
}

// Chain tracks the live scope tree and the currently-executing scope,
// exposing the enter_scope/enter_call_scope/exit_scope/return_to_caller
// operations of spec.md §4.2.
type Chain struct {
	mu      sync.Mutex
	nextID  uint64
	root    *Scope
	current *Scope
}

// NewChain creates the root scope; "the root scope has no parent" (§3.4).
func NewChain() *Chain {
	root := newScope(0, nil)
	return &Chain{nextID: 1, root: root, current: root}
}

// ChainFromLeaf rebuilds a Chain around an already-linked scope ancestry
// (as produced by wire.ProduceChain against a throwaway Chain), making
// leaf current and leaf's ultimate ancestor root. Used when a worker
// restores a job's migrated scope (spec.md §4.5/§4.6).
func ChainFromLeaf(leaf *Scope) *Chain {
	root := leaf
	maxID := leaf.ID
	for root.Parent != nil {
		root = root.Parent
		if root.ID > maxID {
			maxID = root.ID
		}
	}
	if leaf.ID > maxID {
		maxID = leaf.ID
	}
	return &Chain{nextID: maxID + 1, root: root, current: leaf}
}

func (c *Chain) allocID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	return id
}

func (c *Chain) Root() *Scope    { return c.root }
func (c *Chain) Current() *Scope { return c.current }

// EnterScope pushes a new child scope of the current scope.
func (c *Chain) EnterScope() *Scope {
	child := newScope(c.allocID(), c.current)
	c.current = child
	return child
}

// EnterCallScope pushes a new child scope recording the call it was
// entered for and the pc execution should resume at on return.
func (c *Chain) EnterCallScope(call *values.Function, returnPC int) *Scope {
	child := c.EnterScope()
	child.Call = call
	child.SetReturnTo(returnPC)
	return child
}

// ExitScope pops the current scope, releasing any locks it held, and
// makes its parent current. It is an error to exit the root scope.
func (c *Chain) ExitScope() (*Scope, error) {
	exited := c.current
	if exited.Parent == nil {
		return nil, fmt.Errorf("scope: cannot exit the root scope")
	}
	exited.releaseAllLocks()
	c.current = exited.Parent
	return exited, nil
}

// Lookup resolves name by walking from the current scope outward,
// returning the innermost ancestor's binding (spec.md §3.4 invariant,
// §8 property 4).
func (c *Chain) Lookup(name string) (values.Location, *Scope, bool) {
	for s := c.current; s != nil; s = s.Parent {
		if loc, ok := s.LocalLookup(name); ok {
			return loc, s, true
		}
	}
	return values.Location{}, nil, false
}

// ReturnToCaller implements spec.md §4.2's return_to_caller: it finds the
// innermost scope (starting at current) with a pending return pc, clears
// it, and — if that scope's parent requested capture_return — stores the
// returned value in the parent's `_return` slot. It reports whether a
// return target was found and, if shouldJump is true, that pc.
func (c *Chain) ReturnToCaller(value *values.Value, shouldJump bool) (pc int, jumped bool, found bool) {
	s := c.current
	for s != nil {
		if target, ok := s.ReturnTo(); ok {
			s.clearReturnTo()
			if s.Parent != nil && s.Parent.CaptureReturn {
				s.Parent.ReturnValue = value
				s.Parent.CaptureReturn = false
			}
			return target, shouldJump, true
		}
		s = s.Parent
	}
	return 0, false, false
}

// Depth reports how many scopes separate the current scope from the root
// (0 at the root), mainly useful for diagnostics and tests.
func (c *Chain) Depth() int {
	n := 0
	for s := c.current; s.Parent != nil; s = s.Parent {
		n++
	}
	return n
}
