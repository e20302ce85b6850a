package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

func newFinalizedOType(t *testing.T, vm *VirtualMachine, props map[string]*types.Type) *values.Value {
	t.Helper()
	_, err := vm.dispatch(&opcodes.Instruction{Op: opcodes.OpOTypeInit, Dest: locVal("ot", nil)})
	require.NoError(t, err, "otypeinit")
	ot, err := vm.LoadFromStore(loc("ot"))
	require.NoError(t, err)
	for name, pt := range props {
		_, err := vm.dispatch(&opcodes.Instruction{Op: opcodes.OpOTypeProp, Args: []*values.Value{ot, values.NewString(name), values.NewType(pt)}})
		require.NoErrorf(t, err, "otypeprop %s", name)
	}
	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpOTypeFinalize, Args: []*values.Value{ot}})
	require.NoError(t, err, "otypefinalize")
	return ot
}

func TestObjectSetGet(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	ot := newFinalizedOType(t, vm, map[string]*types.Type{"age": types.Number()})

	_, err := vm.dispatch(&opcodes.Instruction{Op: opcodes.OpObjInit, Dest: locVal("o", nil), Args: []*values.Value{ot}})
	require.NoError(t, err, "objinit")
	o, err := vm.LoadFromStore(loc("o"))
	require.NoError(t, err)

	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpObjSet, Args: []*values.Value{values.NewString("age"), values.NewNumber(30), o}})
	require.NoError(t, err, "objset")
	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpObjGet, Dest: locVal("age", types.Number()), Args: []*values.Value{values.NewString("age"), o}})
	require.NoError(t, err, "objget")
	age, _ := vm.LoadFromStore(loc("age"))
	assert.Equal(t, float64(30), age.Num)
}

func TestObjSetRejectsDeclaredPropertyTypeMismatch(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	ot := newFinalizedOType(t, vm, map[string]*types.Type{"age": types.Number()})
	vm.dispatch(&opcodes.Instruction{Op: opcodes.OpObjInit, Dest: locVal("o", nil), Args: []*values.Value{ot}})
	o, _ := vm.LoadFromStore(loc("o"))

	instr := &opcodes.Instruction{Op: opcodes.OpObjSet, Args: []*values.Value{values.NewString("age"), values.NewString("old"), o}}
	_, err := vm.dispatch(instr)
	require.Error(t, err)
	assert.True(t, IsKind(err, TypeMismatch), "expected TypeMismatch, got %v", err)
}

func TestObjInitRequiresFinalizedType(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	vm.dispatch(&opcodes.Instruction{Op: opcodes.OpOTypeInit, Dest: locVal("ot", nil)})
	ot, _ := vm.LoadFromStore(loc("ot"))

	instr := &opcodes.Instruction{Op: opcodes.OpObjInit, Dest: locVal("o", nil), Args: []*values.Value{ot}}
	_, err := vm.dispatch(instr)
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidResourceOperation), "expected InvalidResourceOperation, got %v", err)
}

func TestOTypeSubsetAndObjInstance(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	wide := newFinalizedOType(t, vm, map[string]*types.Type{"age": types.Number(), "name": types.String()})
	narrow := newFinalizedOType(t, vm, map[string]*types.Type{"age": types.Number()})

	// wide carries every property narrow requires, so a wide-shaped value
	// is usable wherever narrow is expected.
	_, err := vm.dispatch(&opcodes.Instruction{Op: opcodes.OpOTypeSubset, Dest: locVal("sub", types.Boolean()), Args: []*values.Value{wide, narrow}})
	require.NoError(t, err, "otypesubset")
	sub, _ := vm.LoadFromStore(loc("sub"))
	assert.True(t, sub.Bool, "expected wide to satisfy narrow's shape")

	vm.dispatch(&opcodes.Instruction{Op: opcodes.OpObjInit, Dest: locVal("o", nil), Args: []*values.Value{wide}})
	o, _ := vm.LoadFromStore(loc("o"))
	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpObjInstance, Dest: locVal("inst", types.Boolean()), Args: []*values.Value{o, narrow}})
	require.NoError(t, err, "objinstance")
	inst, _ := vm.LoadFromStore(loc("inst"))
	assert.True(t, inst.Bool, "expected a wide-typed object to be an instance of the narrow shape")
}
