package wire

import (
	"github.com/svi-lang/svivm/scope"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

// ReduceScope documents a single scope node's own bindings, handlers and
// call metadata — not its ancestry, which ReduceChain walks separately.
// Held storage locks never cross the wire: a scope migrating to another
// node re-acquires locks itself, it does not inherit them (spec.md §4.1).
func (w *Wire) ReduceScope(s *scope.Scope) map[string]any {
	tr := w.newTransfer()
	return tr.reduceScope(s)
}

func (tr *transfer) reduceScope(s *scope.Scope) map[string]any {
	if s == nil {
		return nil
	}
	bindings := map[string]any{}
	for name, loc := range s.BindingsSnapshot() {
		bindings[name] = map[string]any{"AFFINITY": loc.Affinity.String(), "NAME": loc.Name}
	}
	doc := map[string]any{
		"ID":               s.ID,
		"ISEXCEPTIONFRAME": s.IsExceptionFrame,
		"CAPTURERETURN":    s.CaptureReturn,
		"BINDINGS":         bindings,
	}
	if pc, ok := s.ReturnTo(); ok {
		doc["RETURNTO"] = pc
	}
	if s.Call != nil {
		doc["CALL"] = tr.reduceValue(&values.Value{Tag: values.TagFunction, Decl: types.Lambda0(types.Ambiguous()), Fn: s.Call})
	}
	return doc
}

// ReduceChain documents the full parent chain from root to leaf, in
// root-first order, so ProduceChain can relink it in the same order.
func (w *Wire) ReduceChain(leaf *scope.Scope) []map[string]any {
	tr := w.newTransfer()
	var ancestry []*scope.Scope
	for s := leaf; s != nil; s = s.Parent {
		ancestry = append(ancestry, s)
	}
	docs := make([]map[string]any, len(ancestry))
	for i, s := range ancestry {
		docs[len(ancestry)-1-i] = tr.reduceScope(s)
	}
	return docs
}

// ProduceChain rebuilds a scope chain from root-first documents produced
// by ReduceChain, returning the leaf scope (the one a VM should make
// current). The root document's bindings are applied to chain.Root()
// rather than allocating a fresh root, since a Chain always owns exactly
// one.
func (w *Wire) ProduceChain(chain *scope.Chain, docs []map[string]any) *scope.Scope {
	tr := w.newTransfer()
	var current *scope.Scope
	for i, doc := range docs {
		var s *scope.Scope
		if i == 0 {
			s = chain.Root()
		} else {
			s = chain.EnterScope()
		}
		tr.applyScopeDoc(s, doc)
		current = s
	}
	if current == nil {
		current = chain.Root()
	}
	return current
}

func (tr *transfer) applyScopeDoc(s *scope.Scope, doc map[string]any) {
	if doc == nil {
		return
	}
	if bindings, ok := doc["BINDINGS"].(map[string]any); ok {
		for name, locDoc := range bindings {
			ld, _ := locDoc.(map[string]any)
			affinity, _ := ld["AFFINITY"].(string)
			locName, _ := ld["NAME"].(string)
			s.Bind(name, values.Location{Affinity: affinityFromString(affinity), Name: locName})
		}
	}
	if b, ok := doc["ISEXCEPTIONFRAME"].(bool); ok {
		s.IsExceptionFrame = b
	}
	if b, ok := doc["CAPTURERETURN"].(bool); ok {
		s.CaptureReturn = b
	}
	if pc, ok := asInt(doc["RETURNTO"]); ok {
		s.SetReturnTo(pc)
	}
	if callDoc, ok := doc["CALL"]; ok {
		v := tr.produceValue(asDoc(callDoc))
		if v != nil && v.Tag == values.TagFunction {
			s.Call = v.Fn
		}
	}
}
