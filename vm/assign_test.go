package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

func TestAssignEvalCapturesSyncCallReturn(t *testing.T) {
	vm, _, _ := newTestVM()
	// f:double: fnparam NUMBER $l:n; $l:r <- plus $l:n $l:n; return $l:r
	instrs := []*opcodes.Instruction{
		{Op: opcodes.OpBeginFn, Args: []*values.Value{values.NewString("f:double")}},
		{Op: opcodes.OpFnParam, Args: []*values.Value{values.NewType(types.Number()), locVal("n", nil)}},
		{Op: opcodes.OpPlus, Dest: locVal("r", types.Number()), Args: []*values.Value{locVal("n", nil), locVal("n", nil)}},
		{Op: opcodes.OpReturn, Args: []*values.Value{locVal("r", nil)}},
		{
			Op:   opcodes.OpAssignEval,
			Dest: locVal("out", types.Number()),
			Args: []*values.Value{{Tag: values.TagFunction, Fn: &values.Function{Name: "f:double", Params: []*types.Type{types.Number()}, Return: types.Number(), Curried: []*values.Value{values.NewNumber(21)}}}},
		},
	}
	vm.Initialize(instrs)
	require.NoError(t, vm.Execute())
	v, err := vm.LoadFromStore(loc("out"))
	require.NoError(t, err)
	require.Equal(t, float64(42), v.Num)
}
