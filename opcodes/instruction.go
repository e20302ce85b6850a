package opcodes

import (
	"fmt"

	"github.com/svi-lang/svivm/values"
)

// Position records the POSITION(file, line, col) annotation spec.md §3.3
// attaches to an instruction for debugging.
type Position struct {
	File string
	Line int
	Col  int
}

func (p Position) IsZero() bool { return p.File == "" && p.Line == 0 && p.Col == 0 }

func (p Position) String() string {
	if p.IsZero() {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Instruction is one IR node: a tag plus 0-3 reference operands (spec.md
// §3.3). Dest, when non-nil, is the location-typed destination of a
// `$loc <- rhs` assignment line (§6.1); Args holds the opcode's own
// operands in source order. A handful of opcodes (return, call, callif,
// callelse, pushcall*, strslice, pushexhandler) are polyadic — their Args
// length grows by one when the optional trailing operand is supplied —
// but no SVI instruction ever needs more than three Args slots.
type Instruction struct {
	Op   Opcode
	Dest *values.Value
	Args []*values.Value
	Pos  Position
}

func (i *Instruction) Arg(n int) *values.Value {
	if n < 0 || n >= len(i.Args) {
		return nil
	}
	return i.Args[n]
}

func (i *Instruction) String() string {
	return fmt.Sprintf("%s %v", i.Op, i.Args)
}
