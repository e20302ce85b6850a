package scope

import "github.com/svi-lang/svivm/values"

// SelectorKind distinguishes the three exception handler selector forms of
// spec.md §3.5.
type SelectorKind byte

const (
	SelectorUniversal SelectorKind = iota
	SelectorCode
	SelectorPredicate
)

// Selector decides whether a handler applies to a raised exception code.
// Universal matches anything; Code matches an exact numeric code;
// Predicate defers the decision to a VM-invoked function (evaluated by
// package vm, since only the VM can execute a call).
type Selector struct {
	Kind      SelectorKind
	Code      float64
	Predicate *values.Function
}

func UniversalSelector() Selector { return Selector{Kind: SelectorUniversal} }

func CodeSelector(code float64) Selector { return Selector{Kind: SelectorCode, Code: code} }

func PredicateSelector(fn *values.Function) Selector {
	return Selector{Kind: SelectorPredicate, Predicate: fn}
}

// Handler is one pushexhandler registration (spec.md §4.3's
// pushexhandler/popexhandler pair).
type Handler struct {
	ID       uint64
	Selector Selector
	Fn       *values.Function
}

// PushHandler registers h on this scope, most-recently-pushed first when
// later searched.
func (s *Scope) PushHandler(h Handler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// PopHandlerByID removes the handler with the given id from this scope's
// own stack, reporting whether it was found here.
func (s *Scope) PopHandlerByID(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.handlers) - 1; i >= 0; i-- {
		if s.handlers[i].ID == id {
			s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Scope) handlerSnapshot() []Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Handler, len(s.handlers))
	copy(out, s.handlers)
	return out
}

// Candidate pairs a handler with the scope that owns it, so that once a
// predicate selector is evaluated to true the VM knows which scope's
// chain (for exit/unwind purposes) the handler runs in.
type Candidate struct {
	Handler Handler
	Owner   *Scope
}

// Candidates walks the scope chain innermost first: it
// starts at the current scope, visits each scope's own handler stack
// top-to-bottom (most-recently-pushed first), then moves to the parent.
// This is the search order spec.md §8 property 6 requires ("the handler
// invoked is the innermost one whose selector matches").
func (c *Chain) Candidates() []Candidate {
	var out []Candidate
	for s := c.current; s != nil; s = s.Parent {
		hs := s.handlerSnapshot()
		for i := len(hs) - 1; i >= 0; i-- {
			out = append(out, Candidate{Handler: hs[i], Owner: s})
		}
	}
	return out
}

// PopHandlerByID searches the whole chain for a handler with the given id
// — the id is the only identifying information popexhandler carries, so
// the VM does not need to know which scope originally pushed it.
func (c *Chain) PopHandlerByID(id uint64) bool {
	for s := c.current; s != nil; s = s.Parent {
		if s.PopHandlerByID(id) {
			return true
		}
	}
	return false
}
