package vm

import (
	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/values"
)

func (vm *VirtualMachine) booleanOperand(instr *opcodes.Instruction, n int) (bool, error) {
	v, err := vm.arg(instr, n)
	if err != nil {
		return false, err
	}
	if v.Tag != values.TagBoolean {
		return false, newError(TypeMismatch, "%s requires a BOOLEAN operand, got %s", instr.Op, v.TypeOf())
	}
	return v.Bool, nil
}

// execBoolean handles and/or/xor/nand/nor/not over BOOLEAN operands
// (spec.md §4.3).
func (vm *VirtualMachine) execBoolean(instr *opcodes.Instruction) (bool, error) {
	a, err := vm.booleanOperand(instr, 0)
	if err != nil {
		return false, err
	}
	if instr.Op == opcodes.OpNot {
		return true, vm.write(instr.Dest, values.NewBoolean(!a))
	}
	b, err := vm.booleanOperand(instr, 1)
	if err != nil {
		return false, err
	}
	var result bool
	switch instr.Op {
	case opcodes.OpAnd:
		result = a && b
	case opcodes.OpOr:
		result = a || b
	case opcodes.OpXor:
		result = a != b
	case opcodes.OpNand:
		result = !(a && b)
	case opcodes.OpNor:
		result = !(a || b)
	}
	return true, vm.write(instr.Dest, values.NewBoolean(result))
}
