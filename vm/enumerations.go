package vm

import (
	"time"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

func (vm *VirtualMachine) execEnumInit(instr *opcodes.Instruction) (bool, error) {
	elemType, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if elemType.Tag != values.TagType {
		return false, newError(TypeMismatch, "enuminit operand is not a TYPE")
	}
	enum := &values.Value{Tag: values.TagEnumeration, Decl: types.EnumerableOf(elemType.Typ), Enum: values.NewEnumeration(elemType.Typ)}
	return true, vm.write(instr.Dest, enum)
}

func (vm *VirtualMachine) enumOperand(instr *opcodes.Instruction, n int) (*values.Enumeration, error) {
	v, err := vm.arg(instr, n)
	if err != nil {
		return nil, err
	}
	if v.Tag != values.TagEnumeration {
		return nil, newError(TypeMismatch, "expected ENUMERABLE operand, got %s", v.TypeOf())
	}
	return v.Enum, nil
}

func (vm *VirtualMachine) execEnumAppend(instr *opcodes.Instruction) (bool, error) {
	enum, err := vm.enumOperand(instr, 1)
	if err != nil {
		return false, err
	}
	v, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if !v.TypeOf().AssignableTo(enum.ElemType, vm.Arena) {
		return false, newError(TypeMismatch, "cannot append %s into ENUMERABLE<%s>", v.TypeOf(), enum.ElemType)
	}
	enum.Append(v)
	return true, nil
}

func (vm *VirtualMachine) execEnumPrepend(instr *opcodes.Instruction) (bool, error) {
	enum, err := vm.enumOperand(instr, 1)
	if err != nil {
		return false, err
	}
	v, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if !v.TypeOf().AssignableTo(enum.ElemType, vm.Arena) {
		return false, newError(TypeMismatch, "cannot prepend %s into ENUMERABLE<%s>", v.TypeOf(), enum.ElemType)
	}
	enum.Prepend(v)
	return true, nil
}

func (vm *VirtualMachine) execEnumLength(instr *opcodes.Instruction) (bool, error) {
	enum, err := vm.enumOperand(instr, 0)
	if err != nil {
		return false, err
	}
	return true, vm.write(instr.Dest, values.NewNumber(float64(enum.Len())))
}

func (vm *VirtualMachine) execEnumGet(instr *opcodes.Instruction) (bool, error) {
	idx, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	enum, err := vm.enumOperand(instr, 1)
	if err != nil {
		return false, err
	}
	v, ok := enum.Get(int(idx.Num))
	if !ok {
		return false, newError(EnumOutOfBounds, "index %d out of bounds (length %d)", int(idx.Num), enum.Len())
	}
	return true, vm.write(instr.Dest, v)
}

func (vm *VirtualMachine) execEnumSet(instr *opcodes.Instruction) (bool, error) {
	idx, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	v, err := vm.arg(instr, 1)
	if err != nil {
		return false, err
	}
	enum, err := vm.enumOperand(instr, 2)
	if err != nil {
		return false, err
	}
	if !v.TypeOf().AssignableTo(enum.ElemType, vm.Arena) {
		return false, newError(TypeMismatch, "cannot set ENUMERABLE<%s> element to %s", enum.ElemType, v.TypeOf())
	}
	if !enum.Set(int(idx.Num), v) {
		return false, newError(EnumOutOfBounds, "index %d out of bounds (length %d)", int(idx.Num), enum.Len())
	}
	return true, nil
}

func (vm *VirtualMachine) execEnumConcat(instr *opcodes.Instruction) (bool, error) {
	a, err := vm.enumOperand(instr, 0)
	if err != nil {
		return false, err
	}
	b, err := vm.enumOperand(instr, 1)
	if err != nil {
		return false, err
	}
	result := a.Concat(b)
	return true, vm.write(instr.Dest, &values.Value{Tag: values.TagEnumeration, Decl: types.EnumerableOf(result.ElemType), Enum: result})
}

// execEnumerate defers one call per element onto the queue, preserving
// index order via a ReturnValueMap keyed by original index, then blocks
// until the batch drains and assembles the results back into a fresh
// enumeration (spec.md §4.3's `enumerate`, §8 property 5).
func (vm *VirtualMachine) execEnumerate(instr *opcodes.Instruction) (bool, error) {
	elemType, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if elemType.Tag != values.TagType {
		return false, newError(TypeMismatch, "enumerate element type operand is not a TYPE")
	}
	enum, err := vm.enumOperand(instr, 1)
	if err != nil {
		return false, err
	}
	fnRef, err := vm.arg(instr, 2)
	if err != nil {
		return false, err
	}
	if fnRef.Tag != values.TagFunction {
		return false, newError(TypeMismatch, "enumerate callee is not a FUNCTION")
	}

	vm.Queue.EnterContext()
	items := enum.Snapshot()
	rvmap := values.NewReturnValueMap()
	jobToIndex := map[string]int{}
	for i, item := range items {
		curried := fnRef.Fn.Curry(item)
		jobID, err := vm.deferCallTracked(curried)
		if err != nil {
			return false, err
		}
		jobToIndex[jobID.String()] = i
	}

	for !vm.Queue.Idle() {
		time.Sleep(lockRetryInterval)
	}
	results := vm.Queue.Drain()
	for id, v := range results {
		if i, ok := jobToIndex[id.String()]; ok {
			rvmap.Put(i, v)
		}
	}
	vm.Queue.PopContext()

	out := values.NewEnumeration(elemType.Typ)
	for _, v := range rvmap.Ordered(len(items)) {
		out.Append(v)
	}
	return true, vm.write(instr.Dest, &values.Value{Tag: values.TagEnumeration, Decl: types.EnumerableOf(elemType.Typ), Enum: out})
}
