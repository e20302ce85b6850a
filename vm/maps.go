package vm

import (
	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

func (vm *VirtualMachine) execMapInit(instr *opcodes.Instruction) (bool, error) {
	elemType, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if elemType.Tag != values.TagType {
		return false, newError(TypeMismatch, "mapinit operand is not a TYPE")
	}
	m := &values.Value{Tag: values.TagMap, Decl: types.MapOf(elemType.Typ), Map: values.NewMap(elemType.Typ)}
	return true, vm.write(instr.Dest, m)
}

func (vm *VirtualMachine) mapOperand(instr *opcodes.Instruction, n int) (*values.Map, error) {
	v, err := vm.arg(instr, n)
	if err != nil {
		return nil, err
	}
	if v.Tag != values.TagMap {
		return nil, newError(TypeMismatch, "expected MAP operand, got %s", v.TypeOf())
	}
	return v.Map, nil
}

// execMapSet takes `mapset key, value, mapLoc` (spec.md §4.3's "Keys are
// strings" example: `mapset "x" 7 $l:m`).
func (vm *VirtualMachine) execMapSet(instr *opcodes.Instruction) (bool, error) {
	key, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if key.Tag != values.TagString {
		return false, newError(TypeMismatch, "map key is not a STRING")
	}
	v, err := vm.arg(instr, 1)
	if err != nil {
		return false, err
	}
	m, err := vm.mapOperand(instr, 2)
	if err != nil {
		return false, err
	}
	if !v.TypeOf().AssignableTo(m.ElemType, vm.Arena) {
		return false, newError(TypeMismatch, "cannot set MAP<%s> value to %s", m.ElemType, v.TypeOf())
	}
	m.Set(key.Str, v)
	return true, nil
}

func (vm *VirtualMachine) execMapGet(instr *opcodes.Instruction) (bool, error) {
	key, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if key.Tag != values.TagString {
		return false, newError(TypeMismatch, "map key is not a STRING")
	}
	m, err := vm.mapOperand(instr, 1)
	if err != nil {
		return false, err
	}
	v, ok := m.Get(key.Str)
	if !ok {
		return false, newError(MapMissingKey, "no such key %q", key.Str)
	}
	return true, vm.write(instr.Dest, v)
}

func (vm *VirtualMachine) execMapLength(instr *opcodes.Instruction) (bool, error) {
	m, err := vm.mapOperand(instr, 0)
	if err != nil {
		return false, err
	}
	return true, vm.write(instr.Dest, values.NewNumber(float64(m.Len())))
}

func (vm *VirtualMachine) execMapKeys(instr *opcodes.Instruction) (bool, error) {
	m, err := vm.mapOperand(instr, 0)
	if err != nil {
		return false, err
	}
	out := values.NewEnumeration(types.String())
	for _, k := range m.Keys() {
		out.Append(values.NewString(k))
	}
	return true, vm.write(instr.Dest, &values.Value{Tag: values.TagEnumeration, Decl: types.EnumerableOf(types.String()), Enum: out})
}
