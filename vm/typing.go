package vm

import (
	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/values"
)

// execTypify declares/narrows the type of a location without touching its
// current value (spec.md §4.3).
func (vm *VirtualMachine) execTypify(instr *opcodes.Instruction) (bool, error) {
	rawLoc := instr.Arg(0)
	if rawLoc == nil || rawLoc.Tag != values.TagLocation {
		return false, newError(MalformedInstruction, "typify target is not a LOCATION")
	}
	typ, err := vm.arg(instr, 1)
	if err != nil {
		return false, err
	}
	if typ.Tag != values.TagType {
		return false, newError(TypeMismatch, "typify operand is not a TYPE")
	}
	return true, vm.Store.Typify(rawLoc.Loc, typ.Typ)
}

// execTypeOf yields the declared type of a reference as a TYPE value.
func (vm *VirtualMachine) execTypeOf(instr *opcodes.Instruction) (bool, error) {
	v, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	return true, vm.write(instr.Dest, values.NewType(v.TypeOf()))
}

// execCompatible yields whether typeof(a) <= typeof(b).
func (vm *VirtualMachine) execCompatible(instr *opcodes.Instruction) (bool, error) {
	a, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	b, err := vm.arg(instr, 1)
	if err != nil {
		return false, err
	}
	return true, vm.write(instr.Dest, values.NewBoolean(a.TypeOf().AssignableTo(b.TypeOf(), vm.Arena)))
}
