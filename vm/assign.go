package vm

import (
	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/values"
)

// execAssignValue stores a resolved reference at a location. Store itself
// infers the location's declared type from the value on first write
// (spec.md §4.3).
func (vm *VirtualMachine) execAssignValue(instr *opcodes.Instruction) (bool, error) {
	rawLoc := instr.Dest
	if rawLoc == nil || rawLoc.Tag != values.TagLocation {
		return false, newError(MalformedInstruction, "assignvalue destination is not a LOCATION")
	}
	v, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	return true, vm.write(rawLoc, v)
}

// execAssignEval marks the current scope to capture a call's return value,
// evaluates the producing instruction operand, and stores whatever value
// it yields (spec.md §4.5). A FUNCTION operand is invoked synchronously;
// any other already-resolved reference is stored directly, covering
// provider/intrinsic results computed ahead of the assigneval itself.
func (vm *VirtualMachine) execAssignEval(instr *opcodes.Instruction) (bool, error) {
	rawLoc := instr.Dest
	if rawLoc == nil || rawLoc.Tag != values.TagLocation {
		return false, newError(MalformedInstruction, "assigneval destination is not a LOCATION")
	}
	raw := instr.Arg(0)
	if raw == nil {
		return false, newError(MalformedInstruction, "assigneval missing source operand")
	}
	if raw.Tag == values.TagFunction {
		vm.SetCaptureReturn(true)
		ret, err := vm.invokeSync(raw.Fn, nil)
		if err != nil {
			return false, err
		}
		return true, vm.write(rawLoc, ret)
	}
	resolved, err := vm.Resolve(raw)
	if err != nil {
		return false, err
	}
	return true, vm.write(rawLoc, resolved)
}
