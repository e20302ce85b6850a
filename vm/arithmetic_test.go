package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

func TestArithmeticPlus(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	instr := &opcodes.Instruction{
		Op:   opcodes.OpPlus,
		Dest: locVal("c", types.Number()),
		Args: []*values.Value{values.NewNumber(2), values.NewNumber(3)},
	}
	_, err := vm.dispatch(instr)
	require.NoError(t, err)
	v, _ := vm.LoadFromStore(loc("c"))
	assert.Equal(t, float64(5), v.Num)
}

func TestArithmeticDivideByZero(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	instr := &opcodes.Instruction{
		Op:   opcodes.OpDivide,
		Dest: locVal("c", types.Number()),
		Args: []*values.Value{values.NewNumber(1), values.NewNumber(0)},
	}
	_, err := vm.dispatch(instr)
	require.Error(t, err)
	assert.True(t, IsKind(err, DivideByZero), "expected DivideByZero, got %v", err)
}

func TestArithmeticModByZero(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	instr := &opcodes.Instruction{
		Op:   opcodes.OpMod,
		Dest: locVal("c", types.Number()),
		Args: []*values.Value{values.NewNumber(7), values.NewNumber(0)},
	}
	_, err := vm.dispatch(instr)
	require.Error(t, err)
	assert.True(t, IsKind(err, DivideByZero), "expected DivideByZero, got %v", err)
}

func TestArithmeticModUsesFloatingPointRemainder(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	instr := &opcodes.Instruction{
		Op:   opcodes.OpMod,
		Dest: locVal("c", types.Number()),
		Args: []*values.Value{values.NewNumber(5.5), values.NewNumber(2)},
	}
	_, err := vm.dispatch(instr)
	require.NoError(t, err)
	v, _ := vm.LoadFromStore(loc("c"))
	assert.Equal(t, 1.5, v.Num, "expected mod(5.5, 2) to use fmod semantics, not truncating integer modulo")
}

func TestComparisonEqAcrossTags(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	instr := &opcodes.Instruction{
		Op:   opcodes.OpEq,
		Dest: locVal("eq", types.Boolean()),
		Args: []*values.Value{values.NewString("a"), values.NewString("a")},
	}
	_, err := vm.dispatch(instr)
	require.NoError(t, err)
	v, _ := vm.LoadFromStore(loc("eq"))
	assert.True(t, v.Bool, "expected equal strings to compare true")
}

func TestComparisonOrdering(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	instr := &opcodes.Instruction{
		Op:   opcodes.OpLt,
		Dest: locVal("lt", types.Boolean()),
		Args: []*values.Value{values.NewNumber(1), values.NewNumber(2)},
	}
	_, err := vm.dispatch(instr)
	require.NoError(t, err)
	v, _ := vm.LoadFromStore(loc("lt"))
	assert.True(t, v.Bool, "expected 1 < 2 to be true")
}
