package wire

import (
	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/scope"
)

// ReduceState documents the instruction tape and program counter of a
// scope.State. FunctionEntries/FunctionSkips are not serialized: they are
// a deterministic function of the instruction tape, so ProduceState
// recomputes them via scope.NewState instead of trusting a stale copy.
func (w *Wire) ReduceState(st *scope.State) map[string]any {
	tr := w.newTransfer()
	instrs := make([]any, len(st.Instructions))
	for i, instr := range st.Instructions {
		instrs[i] = tr.reduceInstruction(instr)
	}
	return map[string]any{
		"PC":           st.PC,
		"INSTRUCTIONS": instrs,
	}
}

// ProduceState rebuilds a scope.State from a document produced by
// ReduceState.
func (w *Wire) ProduceState(doc map[string]any) *scope.State {
	tr := w.newTransfer()
	raw, _ := doc["INSTRUCTIONS"].([]any)
	instrs := make([]*opcodes.Instruction, len(raw))
	for i, d := range raw {
		instrs[i] = tr.produceInstruction(asDoc(d))
	}
	st := scope.NewState(instrs)
	if pc, ok := asInt(doc["PC"]); ok {
		st.PC = pc
	}
	return st
}
