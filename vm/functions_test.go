package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/queue"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

func squareFn(arg *values.Value) []*opcodes.Instruction {
	return []*opcodes.Instruction{
		{Op: opcodes.OpBeginFn, Args: []*values.Value{values.NewString("f:square")}},
		{Op: opcodes.OpFnParam, Args: []*values.Value{values.NewType(types.Number()), locVal("n", nil)}},
		{Op: opcodes.OpMultiply, Dest: locVal("r", types.Number()), Args: []*values.Value{locVal("n", nil), locVal("n", nil)}},
		{Op: opcodes.OpReturn, Args: []*values.Value{locVal("r", nil)}},
	}
}

func TestCallRunsCalleeAndWritesResult(t *testing.T) {
	vm, _, _ := newTestVM()
	fn := &values.Value{Tag: values.TagFunction, Fn: &values.Function{Name: "f:square", Params: []*types.Type{types.Number()}, Return: types.Number()}}
	instrs := append(squareFn(nil),
		&opcodes.Instruction{Op: opcodes.OpCall, Dest: locVal("out", types.Number()), Args: []*values.Value{fn, values.NewNumber(6)}},
	)
	vm.Initialize(instrs)
	require.NoError(t, vm.Execute())
	v, err := vm.LoadFromStore(loc("out"))
	require.NoError(t, err)
	assert.Equal(t, float64(36), v.Num)
}

func TestCurryBuildsUpArguments(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	fn := &values.Value{Tag: values.TagFunction, Fn: &values.Function{Name: "f:add", Params: []*types.Type{types.Number(), types.Number()}}}
	instr := &opcodes.Instruction{Op: opcodes.OpCurry, Dest: locVal("partial", nil), Args: []*values.Value{fn, values.NewNumber(1)}}
	_, err := vm.dispatch(instr)
	require.NoError(t, err)
	v, err := vm.LoadFromStore(loc("partial"))
	require.NoError(t, err)
	require.Len(t, v.Fn.Curried, 1)
	assert.Equal(t, float64(1), v.Fn.Curried[0].Num)
}

func TestCurryRejectsMismatchedType(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	fn := &values.Value{Tag: values.TagFunction, Fn: &values.Function{Name: "f:add", Params: []*types.Type{types.Number()}}}
	instr := &opcodes.Instruction{Op: opcodes.OpCurry, Dest: locVal("partial", nil), Args: []*values.Value{fn, values.NewString("nope")}}
	_, err := vm.dispatch(instr)
	require.Error(t, err)
	assert.True(t, IsKind(err, TypeMismatch), "expected TypeMismatch, got %v", err)
}

func TestPushCallThenDrainDeliversReturnValue(t *testing.T) {
	vm, _, _ := newTestVM()
	fn := &values.Value{Tag: values.TagFunction, Fn: &values.Function{Name: "f:square", Params: []*types.Type{types.Number()}, Return: types.Number()}}
	instrs := append(squareFn(nil),
		&opcodes.Instruction{Op: opcodes.OpPushCall, Dest: locVal("out", types.Number()), Args: []*values.Value{fn, values.NewNumber(7)}},
	)
	vm.Initialize(instrs)
	require.NoError(t, vm.Execute())

	// Nothing has run the deferred job yet: simulate the worker side of
	// spec.md §4.5 by hand before calling execDrain directly (calling it
	// through Execute would retry-sleep forever with no worker present).
	job, ok, err := vm.Queue.Pop(nil)
	require.NoError(t, err)
	require.True(t, ok, "expected a queued job")
	// captureJobState snapshots the caller's scope/state independently, so
	// the job carries its own chain and PC rather than the live VM's.
	require.NotNil(t, job.Scope)
	require.NotSame(t, vm.State, job.State, "expected the job's state to be an independent capture, not the live VM state")

	vm.Queue.MarkRunning(job)
	require.NoError(t, vm.RunJob(job))
	job.Status = queue.Complete
	require.NoError(t, vm.Queue.Complete(job))

	_, err = vm.execDrain(&opcodes.Instruction{Op: opcodes.OpDrain})
	require.NoError(t, err)
	v, err := vm.LoadFromStore(loc("out"))
	require.NoError(t, err)
	assert.Equal(t, float64(49), v.Num, "expected out=49 after drain")
}
