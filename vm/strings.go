package vm

import (
	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/values"
)

func (vm *VirtualMachine) stringOperand(instr *opcodes.Instruction, n int) (string, error) {
	v, err := vm.arg(instr, n)
	if err != nil {
		return "", err
	}
	if v.Tag != values.TagString {
		return "", newError(TypeMismatch, "expected STRING operand, got %s", v.TypeOf())
	}
	return v.Str, nil
}

func (vm *VirtualMachine) execStrConcat(instr *opcodes.Instruction) (bool, error) {
	a, err := vm.stringOperand(instr, 0)
	if err != nil {
		return false, err
	}
	b, err := vm.stringOperand(instr, 1)
	if err != nil {
		return false, err
	}
	return true, vm.write(instr.Dest, values.NewString(a+b))
}

func (vm *VirtualMachine) execStrLength(instr *opcodes.Instruction) (bool, error) {
	s, err := vm.stringOperand(instr, 0)
	if err != nil {
		return false, err
	}
	return true, vm.write(instr.Dest, values.NewNumber(float64(len(s))))
}

// execStrSlice implements `slice(start)` / `slice(start,end)` (spec.md
// §4.3), the polyadic second form clamped to the string's bounds.
func (vm *VirtualMachine) execStrSlice(instr *opcodes.Instruction) (bool, error) {
	s, err := vm.stringOperand(instr, 0)
	if err != nil {
		return false, err
	}
	startVal, err := vm.arg(instr, 1)
	if err != nil {
		return false, err
	}
	if startVal.Tag != values.TagNumber {
		return false, newError(TypeMismatch, "strslice start is not a NUMBER")
	}
	start := clampIndex(int(startVal.Num), len(s))
	end := len(s)
	if raw := instr.Arg(2); raw != nil {
		endVal, err := vm.Resolve(raw)
		if err != nil {
			return false, err
		}
		if endVal.Tag != values.TagNumber {
			return false, newError(TypeMismatch, "strslice end is not a NUMBER")
		}
		end = clampIndex(int(endVal.Num), len(s))
	}
	if end < start {
		end = start
	}
	return true, vm.write(instr.Dest, values.NewString(s[start:end]))
}

func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}
