package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

func newMap(t *testing.T, vm *VirtualMachine, elemType *types.Type) *values.Value {
	t.Helper()
	instr := &opcodes.Instruction{Op: opcodes.OpMapInit, Dest: locVal("m", nil), Args: []*values.Value{values.NewType(elemType)}}
	_, err := vm.dispatch(instr)
	require.NoError(t, err)
	v, err := vm.LoadFromStore(loc("m"))
	require.NoError(t, err)
	return v
}

func TestMapSetGetLengthKeys(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	m := newMap(t, vm, types.Number())

	_, err := vm.dispatch(&opcodes.Instruction{Op: opcodes.OpMapSet, Args: []*values.Value{values.NewString("x"), values.NewNumber(7), m}})
	require.NoError(t, err, "set")
	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpMapGet, Dest: locVal("v", types.Number()), Args: []*values.Value{values.NewString("x"), m}})
	require.NoError(t, err, "get")
	v, _ := vm.LoadFromStore(loc("v"))
	assert.Equal(t, float64(7), v.Num)

	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpMapLength, Dest: locVal("n", types.Number()), Args: []*values.Value{m}})
	require.NoError(t, err, "length")
	n, _ := vm.LoadFromStore(loc("n"))
	assert.Equal(t, float64(1), n.Num)

	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpMapKeys, Dest: locVal("ks", nil), Args: []*values.Value{m}})
	require.NoError(t, err, "keys")
	ks, _ := vm.LoadFromStore(loc("ks"))
	require.Equal(t, 1, ks.Enum.Len())
	first, _ := ks.Enum.Get(0)
	assert.Equal(t, "x", first.Str)
}

func TestMapGetMissingKey(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	m := newMap(t, vm, types.Number())
	instr := &opcodes.Instruction{Op: opcodes.OpMapGet, Dest: locVal("v", types.Number()), Args: []*values.Value{values.NewString("missing"), m}}
	_, err := vm.dispatch(instr)
	require.Error(t, err)
	assert.True(t, IsKind(err, MapMissingKey), "expected MapMissingKey, got %v", err)
}

func TestMapSetRejectsMismatchedValueType(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	m := newMap(t, vm, types.Number())
	instr := &opcodes.Instruction{Op: opcodes.OpMapSet, Args: []*values.Value{values.NewString("x"), values.NewString("nope"), m}}
	_, err := vm.dispatch(instr)
	require.Error(t, err)
	assert.True(t, IsKind(err, TypeMismatch), "expected TypeMismatch, got %v", err)
}
