package vm

import (
	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

// execOTypeInit allocates a fresh, open object type (spec.md §4.3).
func (vm *VirtualMachine) execOTypeInit(instr *opcodes.Instruction) (bool, error) {
	id := vm.Arena.New()
	return true, vm.write(instr.Dest, values.NewOType(id))
}

func (vm *VirtualMachine) otypeOperand(instr *opcodes.Instruction, n int) (types.ObjectTypeID, error) {
	v, err := vm.arg(instr, n)
	if err != nil {
		return 0, err
	}
	if v.Tag != values.TagOType {
		return 0, newError(TypeMismatch, "expected an object TYPE operand, got %s", v.TypeOf())
	}
	return v.OType, nil
}

// execOTypeProp declares or overwrites a property on an open object type:
// `otypeprop type, name, propType`.
func (vm *VirtualMachine) execOTypeProp(instr *opcodes.Instruction) (bool, error) {
	id, err := vm.otypeOperand(instr, 0)
	if err != nil {
		return false, err
	}
	name, err := vm.stringOperand(instr, 1)
	if err != nil {
		return false, err
	}
	propType, err := vm.arg(instr, 2)
	if err != nil {
		return false, err
	}
	if propType.Tag != values.TagType {
		return false, newError(TypeMismatch, "otypeprop type operand is not a TYPE")
	}
	if !vm.Arena.SetProp(id, name, propType.Typ) {
		return false, newError(InvalidResourceOperation, "object type %d is finalized or unknown", id)
	}
	return true, nil
}

func (vm *VirtualMachine) execOTypeDel(instr *opcodes.Instruction) (bool, error) {
	id, err := vm.otypeOperand(instr, 0)
	if err != nil {
		return false, err
	}
	name, err := vm.stringOperand(instr, 1)
	if err != nil {
		return false, err
	}
	if !vm.Arena.DelProp(id, name) {
		return false, newError(InvalidResourceOperation, "object type %d is finalized or unknown", id)
	}
	return true, nil
}

// execOTypeGet yields the declared TYPE of a named property.
func (vm *VirtualMachine) execOTypeGet(instr *opcodes.Instruction) (bool, error) {
	id, err := vm.otypeOperand(instr, 0)
	if err != nil {
		return false, err
	}
	name, err := vm.stringOperand(instr, 1)
	if err != nil {
		return false, err
	}
	ot, ok := vm.Arena.Get(id)
	if !ok {
		return false, newError(InvalidResourceOperation, "unknown object type %d", id)
	}
	propType, ok := ot.Props[name]
	if !ok {
		return false, newError(MapMissingKey, "object type %d has no property %q", id, name)
	}
	return true, vm.write(instr.Dest, values.NewType(propType))
}

func (vm *VirtualMachine) execOTypeFinalize(instr *opcodes.Instruction) (bool, error) {
	id, err := vm.otypeOperand(instr, 0)
	if err != nil {
		return false, err
	}
	if !vm.Arena.Finalize(id) {
		return false, newError(InvalidResourceOperation, "unknown object type %d", id)
	}
	return true, nil
}

func (vm *VirtualMachine) execOTypeSubset(instr *opcodes.Instruction) (bool, error) {
	candidate, err := vm.otypeOperand(instr, 0)
	if err != nil {
		return false, err
	}
	against, err := vm.otypeOperand(instr, 1)
	if err != nil {
		return false, err
	}
	return true, vm.write(instr.Dest, values.NewBoolean(vm.Arena.Subset(candidate, against)))
}

func (vm *VirtualMachine) execObjInit(instr *opcodes.Instruction) (bool, error) {
	id, err := vm.otypeOperand(instr, 0)
	if err != nil {
		return false, err
	}
	ot, ok := vm.Arena.Get(id)
	if !ok || !ot.Final {
		return false, newError(InvalidResourceOperation, "object type %d is not finalized", id)
	}
	obj := values.NewObject(id)
	return true, vm.write(instr.Dest, &values.Value{Tag: values.TagObject, Decl: types.ObjectOf(id), Obj: obj})
}

func (vm *VirtualMachine) objectOperand(instr *opcodes.Instruction, n int) (*values.Object, error) {
	v, err := vm.arg(instr, n)
	if err != nil {
		return nil, err
	}
	if v.Tag != values.TagObject {
		return nil, newError(TypeMismatch, "expected OBJECT operand, got %s", v.TypeOf())
	}
	return v.Obj, nil
}

// execObjSet writes a property by name, validated against the object
// type's declared property type.
func (vm *VirtualMachine) execObjSet(instr *opcodes.Instruction) (bool, error) {
	name, err := vm.stringOperand(instr, 0)
	if err != nil {
		return false, err
	}
	v, err := vm.arg(instr, 1)
	if err != nil {
		return false, err
	}
	obj, err := vm.objectOperand(instr, 2)
	if err != nil {
		return false, err
	}
	ot, ok := vm.Arena.Get(obj.OType)
	if !ok {
		return false, newError(InvalidResourceOperation, "unknown object type %d", obj.OType)
	}
	if declared, ok := ot.Props[name]; ok && !v.TypeOf().AssignableTo(declared, vm.Arena) {
		return false, newError(TypeMismatch, "cannot set property %q to %s, declared %s", name, v.TypeOf(), declared)
	}
	obj.Set(name, v)
	return true, nil
}

func (vm *VirtualMachine) execObjGet(instr *opcodes.Instruction) (bool, error) {
	name, err := vm.stringOperand(instr, 0)
	if err != nil {
		return false, err
	}
	obj, err := vm.objectOperand(instr, 1)
	if err != nil {
		return false, err
	}
	v, ok := obj.Get(name)
	if !ok {
		return false, newError(MapMissingKey, "object has no property %q", name)
	}
	return true, vm.write(instr.Dest, v)
}

// execObjInstance reports whether an object's type is a structural subset
// of a candidate object type, i.e. "is this object an instance of that
// shape" (spec.md §4.3's `objinstance`).
func (vm *VirtualMachine) execObjInstance(instr *opcodes.Instruction) (bool, error) {
	obj, err := vm.objectOperand(instr, 0)
	if err != nil {
		return false, err
	}
	against, err := vm.otypeOperand(instr, 1)
	if err != nil {
		return false, err
	}
	return true, vm.write(instr.Dest, values.NewBoolean(vm.Arena.IsSubset(obj.OType, against)))
}

// execObjCurry binds an object instance as the first curried argument of
// a method function reference, the object-oriented counterpart of curry.
func (vm *VirtualMachine) execObjCurry(instr *opcodes.Instruction) (bool, error) {
	fnRef, err := vm.arg(instr, 0)
	if err != nil {
		return false, err
	}
	if fnRef.Tag != values.TagFunction {
		return false, newError(TypeMismatch, "objcurry target is not a FUNCTION")
	}
	objVal, err := vm.arg(instr, 1)
	if err != nil {
		return false, err
	}
	if objVal.Tag != values.TagObject {
		return false, newError(TypeMismatch, "objcurry argument is not an OBJECT")
	}
	curried := &values.Value{Tag: values.TagFunction, Decl: fnRef.Decl, Fn: fnRef.Fn.Curry(objVal)}
	return true, vm.write(instr.Dest, curried)
}
