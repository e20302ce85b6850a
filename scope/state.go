package scope

import "github.com/svi-lang/svivm/opcodes"

// State is the per-run instruction tape and program counter of spec.md
// §3.6: a flat instruction list plus the prepass tables that let normal
// top-to-bottom execution skip over function bodies it isn't calling into
// yet (spec.md §4.2's "beginfn prepass").
type State struct {
	Instructions []*opcodes.Instruction
	PC           int

	// FunctionEntries maps a function name to the index of its beginfn
	// instruction; FunctionSkips maps that same name to the index just
	// past its matching return, i.e. where straight-line execution
	// resumes if it falls through the definition rather than being
	// called into it.
	FunctionEntries map[string]int
	FunctionSkips   map[string]int
}

// NewState scans instructions once, pairing each beginfn with the return
// that closes it (nesting-aware, so a function literal defined inside
// another function's body still resolves to the right skip target).
func NewState(instructions []*opcodes.Instruction) *State {
	s := &State{
		Instructions:    instructions,
		FunctionEntries: make(map[string]int),
		FunctionSkips:   make(map[string]int),
	}

	type open struct {
		name  string
		entry int
	}
	var stack []open

	for i, instr := range instructions {
		switch instr.Op {
		case opcodes.OpBeginFn:
			name := ""
			if n := instr.Arg(0); n != nil {
				name = n.Str
			}
			s.FunctionEntries[name] = i
			stack = append(stack, open{name: name, entry: i})
		case opcodes.OpReturn:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				s.FunctionSkips[top.name] = i + 1
			}
		}
	}
	return s
}

// Fetch returns the instruction at pc, or nil past the end of the tape.
func (s *State) Fetch(pc int) *opcodes.Instruction {
	if pc < 0 || pc >= len(s.Instructions) {
		return nil
	}
	return s.Instructions[pc]
}

// SkipTarget reports where execution should jump to if it reaches name's
// beginfn by falling through rather than by a call.
func (s *State) SkipTarget(name string) (int, bool) {
	pc, ok := s.FunctionSkips[name]
	return pc, ok
}

// EntryOf reports the instruction index a named function's body starts at.
func (s *State) EntryOf(name string) (int, bool) {
	pc, ok := s.FunctionEntries[name]
	return pc, ok
}

// AtEnd reports whether pc has run off the end of the tape.
func (s *State) AtEnd(pc int) bool { return pc >= len(s.Instructions) }
