// Package asm implements the SVI textual assembler (spec.md §6.1) and the
// SBI binary exchange format (§6.2). The front end that turns source text
// into References lives here; it is a fresh grammar, not an adaptation of
// the teacher's PHP lexer/parser, since PHP's recursive-descent expression
// grammar has nothing in common with SVI's flat opcode-per-line form.
package asm

import "github.com/svi-lang/svivm/opcodes"

// Arity gives the minimum and maximum operand count the text assembler
// should consume for an opcode before the next `opcode` mnemonic or
// `<-`, per spec.md §6.1: "a few opcodes are polyadic ... disambiguated
// by counting non-assignment operands". Fixed-arity opcodes have
// Min == Max; everything not listed here defaults to its Min==Max arg
// count as declared by the vm package's own per-instruction contract
// (zero operands for exit/nop, one for unary ops, two for binary ops),
// so this table only needs entries for the genuinely ambiguous opcodes.
type Arity struct {
	Min, Max int
}

var arities = map[opcodes.Opcode]Arity{
	opcodes.OpReturn:         {0, 1},
	opcodes.OpCall:           {1, 2},
	opcodes.OpCallIf:         {2, 3},
	opcodes.OpCallElse:       {2, 3},
	opcodes.OpPushCall:       {1, 2},
	opcodes.OpPushCallIf:     {2, 3},
	opcodes.OpPushCallElse:   {2, 3},
	opcodes.OpStrSlice:       {2, 3},
	opcodes.OpPushExHandler:  {1, 2},
}

// fixed lists the exact operand count for every non-polyadic opcode the
// assembler understands, nullary control opcodes (nop, exit, drain,
// popcontext, entercontext) included with a count of 0. Opcodes the
// assembler never needs to fully validate (those that only ever appear as
// `$loc <- opcode ...` with a variable tail handled by Arity above) are
// left out of both maps; Lookup falls back to "consume operands until the next mnemonic or end
// of line" for anything absent from both tables.
var fixed = map[opcodes.Opcode]int{
	opcodes.OpNop:           0,
	opcodes.OpExit:          0,
	opcodes.OpDrain:         0,
	opcodes.OpPopContext:    0,
	opcodes.OpEnterContext:  0,
	opcodes.OpNot:           1,
	opcodes.OpUnlock:        1,
	opcodes.OpLock:          1,
	opcodes.OpOut:           1,
	opcodes.OpErr:           1,
	opcodes.OpTypeOf:        1,
	opcodes.OpEnumLength:    1,
	opcodes.OpMapLength:     1,
	opcodes.OpMapKeys:       1,
	opcodes.OpStrLength:     1,
	opcodes.OpStreamInit:    1,
	opcodes.OpStreamClose:   1,
	opcodes.OpStreamEmpty:   1,
	opcodes.OpBeginFn:       1,
	opcodes.OpFnParam:       2,
	opcodes.OpCurry:         2,
	opcodes.OpPlus:          2,
	opcodes.OpMinus:         2,
	opcodes.OpMultiply:      2,
	opcodes.OpDivide:        2,
	opcodes.OpMod:           2,
	opcodes.OpEq:            2,
	opcodes.OpNeq:           2,
	opcodes.OpLt:            2,
	opcodes.OpLte:           2,
	opcodes.OpGt:            2,
	opcodes.OpGte:           2,
	opcodes.OpAnd:           2,
	opcodes.OpOr:            2,
	opcodes.OpXor:           2,
	opcodes.OpNand:          2,
	opcodes.OpNor:           2,
	opcodes.OpAssignValue:   1,
	opcodes.OpAssignEval:    1,
	opcodes.OpTypify:        2,
	opcodes.OpCompatible:    2,
	opcodes.OpEnumInit:      1,
	opcodes.OpEnumAppend:    2,
	opcodes.OpEnumPrepend:   2,
	opcodes.OpEnumGet:       2,
	opcodes.OpEnumSet:       3,
	opcodes.OpEnumConcat:    2,
	opcodes.OpEnumerate:     3,
	opcodes.OpMapInit:       1,
	opcodes.OpMapSet:        3,
	opcodes.OpMapGet:        2,
	opcodes.OpStrConcat:     2,
	opcodes.OpStreamPush:    2,
	opcodes.OpStreamPop:     1,
	opcodes.OpOTypeInit:     0,
	opcodes.OpOTypeProp:     3,
	opcodes.OpOTypeDel:      2,
	opcodes.OpOTypeGet:      2,
	opcodes.OpOTypeFinalize: 1,
	opcodes.OpOTypeSubset:   2,
	opcodes.OpObjInit:       1,
	opcodes.OpObjSet:        3,
	opcodes.OpObjGet:        2,
	opcodes.OpObjInstance:   2,
	opcodes.OpObjCurry:      2,
	opcodes.OpPopExHandler:  1,
	opcodes.OpRaise:         1,
	opcodes.OpResume:        1,
	opcodes.OpWhile:         2,
	opcodes.OpWith:          2,
	opcodes.OpResumeContext: 1,
}

// Lookup reports the [min,max] operand count for op. ok is false when the
// opcode appears in neither table, which the parser treats as "consume
// everything remaining on the line" rather than an error, so a future
// opcode addition degrades gracefully instead of rejecting valid input.
func Lookup(op opcodes.Opcode) (Arity, bool) {
	if a, ok := arities[op]; ok {
		return a, true
	}
	if n, ok := fixed[op]; ok {
		return Arity{n, n}, true
	}
	return Arity{}, false
}
