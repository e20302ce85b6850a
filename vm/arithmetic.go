package vm

import (
	"math"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/values"
)

func (vm *VirtualMachine) numericOperands(instr *opcodes.Instruction) (float64, float64, error) {
	a, err := vm.arg(instr, 0)
	if err != nil {
		return 0, 0, err
	}
	b, err := vm.arg(instr, 1)
	if err != nil {
		return 0, 0, err
	}
	if a.Tag != values.TagNumber || b.Tag != values.TagNumber {
		return 0, 0, newError(TypeMismatch, "%s requires two NUMBER operands, got %s and %s", instr.Op, a.TypeOf(), b.TypeOf())
	}
	return a.Num, b.Num, nil
}

// execArithmetic handles plus/minus/multiply/divide/mod (spec.md §4.3).
func (vm *VirtualMachine) execArithmetic(instr *opcodes.Instruction) (bool, error) {
	a, b, err := vm.numericOperands(instr)
	if err != nil {
		return false, err
	}
	var result float64
	switch instr.Op {
	case opcodes.OpPlus:
		result = a + b
	case opcodes.OpMinus:
		result = a - b
	case opcodes.OpMultiply:
		result = a * b
	case opcodes.OpDivide:
		if b == 0 {
			return false, newError(DivideByZero, "division by zero")
		}
		result = a / b
	case opcodes.OpMod:
		if b == 0 {
			return false, newError(DivideByZero, "modulo by zero")
		}
		result = math.Mod(a, b)
	}
	return true, vm.write(instr.Dest, values.NewNumber(result))
}

// execComparison handles eq/neq/lt/lte/gt/gte. eq/neq use structural
// Equal across any two references (spec.md §3.2); the ordering
// comparisons require NUMBER operands.
func (vm *VirtualMachine) execComparison(instr *opcodes.Instruction) (bool, error) {
	if instr.Op == opcodes.OpEq || instr.Op == opcodes.OpNeq {
		a, err := vm.arg(instr, 0)
		if err != nil {
			return false, err
		}
		b, err := vm.arg(instr, 1)
		if err != nil {
			return false, err
		}
		eq := a.Equal(b)
		if instr.Op == opcodes.OpNeq {
			eq = !eq
		}
		return true, vm.write(instr.Dest, values.NewBoolean(eq))
	}
	a, b, err := vm.numericOperands(instr)
	if err != nil {
		return false, err
	}
	var result bool
	switch instr.Op {
	case opcodes.OpLt:
		result = a < b
	case opcodes.OpLte:
		result = a <= b
	case opcodes.OpGt:
		result = a > b
	case opcodes.OpGte:
		result = a >= b
	}
	return true, vm.write(instr.Dest, values.NewBoolean(result))
}
