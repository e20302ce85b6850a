package wire

import (
	"github.com/svi-lang/svivm/opcodes"
)

// ReduceInstruction documents a single IR instruction (spec.md §3.3).
func (w *Wire) ReduceInstruction(i *opcodes.Instruction) map[string]any {
	tr := w.newTransfer()
	return tr.reduceInstruction(i)
}

func (tr *transfer) reduceInstruction(i *opcodes.Instruction) map[string]any {
	if i == nil {
		return nil
	}
	args := make([]any, len(i.Args))
	for idx, a := range i.Args {
		args[idx] = tr.reduceValue(a)
	}
	doc := map[string]any{
		"OP":   i.Op.String(),
		"ARGS": args,
	}
	if i.Dest != nil {
		doc["DEST"] = tr.reduceValue(i.Dest)
	}
	if !i.Pos.IsZero() {
		doc["POS"] = map[string]any{"FILE": i.Pos.File, "LINE": i.Pos.Line, "COL": i.Pos.Col}
	}
	return doc
}

// ProduceInstruction rebuilds an instruction from a document produced by
// ReduceInstruction.
func (w *Wire) ProduceInstruction(doc map[string]any) *opcodes.Instruction {
	tr := w.newTransfer()
	return tr.produceInstruction(doc)
}

func (tr *transfer) produceInstruction(doc map[string]any) *opcodes.Instruction {
	if doc == nil {
		return nil
	}
	opName, _ := doc["OP"].(string)
	op, _ := opcodes.Lookup(opName)

	instr := &opcodes.Instruction{Op: op}
	if rawArgs, ok := doc["ARGS"].([]any); ok {
		for _, a := range rawArgs {
			instr.Args = append(instr.Args, tr.produceValue(asDoc(a)))
		}
	}
	if destDoc, ok := doc["DEST"]; ok {
		instr.Dest = tr.produceValue(asDoc(destDoc))
	}
	if posDoc, ok := doc["POS"].(map[string]any); ok {
		file, _ := posDoc["FILE"].(string)
		line, _ := asInt(posDoc["LINE"])
		col, _ := asInt(posDoc["COL"])
		instr.Pos = opcodes.Position{File: file, Line: line, Col: col}
	}
	return instr
}
