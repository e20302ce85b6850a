package vm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/queue"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

func newEnum(t *testing.T, vm *VirtualMachine, elemType *types.Type) *values.Value {
	t.Helper()
	instr := &opcodes.Instruction{Op: opcodes.OpEnumInit, Dest: locVal("e", nil), Args: []*values.Value{values.NewType(elemType)}}
	_, err := vm.dispatch(instr)
	require.NoError(t, err)
	v, err := vm.LoadFromStore(loc("e"))
	require.NoError(t, err)
	return v
}

func TestEnumAppendPrependLengthGetSet(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	e := newEnum(t, vm, types.Number())

	_, err := vm.dispatch(&opcodes.Instruction{Op: opcodes.OpEnumAppend, Args: []*values.Value{values.NewNumber(2), e}})
	require.NoError(t, err, "append")
	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpEnumPrepend, Args: []*values.Value{values.NewNumber(1), e}})
	require.NoError(t, err, "prepend")
	require.Equal(t, 2, e.Enum.Len())

	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpEnumLength, Dest: locVal("n", types.Number()), Args: []*values.Value{e}})
	require.NoError(t, err, "length")
	n, _ := vm.LoadFromStore(loc("n"))
	assert.Equal(t, float64(2), n.Num)

	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpEnumGet, Dest: locVal("first", types.Number()), Args: []*values.Value{values.NewNumber(0), e}})
	require.NoError(t, err, "get")
	first, _ := vm.LoadFromStore(loc("first"))
	assert.Equal(t, float64(1), first.Num, "expected prepended 1 at index 0")

	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpEnumSet, Args: []*values.Value{values.NewNumber(0), values.NewNumber(9), e}})
	require.NoError(t, err, "set")
	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpEnumGet, Dest: locVal("first2", types.Number()), Args: []*values.Value{values.NewNumber(0), e}})
	require.NoError(t, err, "get")
	first2, _ := vm.LoadFromStore(loc("first2"))
	assert.Equal(t, float64(9), first2.Num, "expected 9 after set")
}

func TestEnumGetOutOfBounds(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	e := newEnum(t, vm, types.Number())
	instr := &opcodes.Instruction{Op: opcodes.OpEnumGet, Dest: locVal("v", types.Number()), Args: []*values.Value{values.NewNumber(0), e}}
	_, err := vm.dispatch(instr)
	require.Error(t, err)
	assert.True(t, IsKind(err, EnumOutOfBounds), "expected EnumOutOfBounds, got %v", err)
}

func TestEnumAppendRejectsMismatchedElementType(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	e := newEnum(t, vm, types.Number())
	instr := &opcodes.Instruction{Op: opcodes.OpEnumAppend, Args: []*values.Value{values.NewString("nope"), e}}
	_, err := vm.dispatch(instr)
	require.Error(t, err)
	assert.True(t, IsKind(err, TypeMismatch), "expected TypeMismatch, got %v", err)
}

func TestEnumConcat(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	a := newEnum(t, vm, types.Number())
	vm.dispatch(&opcodes.Instruction{Op: opcodes.OpEnumAppend, Args: []*values.Value{values.NewNumber(1), a}})
	instr := &opcodes.Instruction{Op: opcodes.OpEnumInit, Dest: locVal("e2", nil), Args: []*values.Value{values.NewType(types.Number())}}
	vm.dispatch(instr)
	b, _ := vm.LoadFromStore(loc("e2"))
	vm.dispatch(&opcodes.Instruction{Op: opcodes.OpEnumAppend, Args: []*values.Value{values.NewNumber(2), b}})

	out := &opcodes.Instruction{Op: opcodes.OpEnumConcat, Dest: locVal("c", nil), Args: []*values.Value{a, b}}
	_, err := vm.dispatch(out)
	require.NoError(t, err)
	c, _ := vm.LoadFromStore(loc("c"))
	assert.Equal(t, 2, c.Enum.Len())
}

// TestEnumerateRunsOneJobPerElement drives a background worker goroutine
// so the enumerate opcode's own internal drain loop (retry-sleep on
// vm.Queue.Idle()) has something to wait for besides a hang.
func TestEnumerateRunsOneJobPerElement(t *testing.T) {
	vm, _, _ := newTestVM()
	fnInstrs := squareFn(nil)
	vm.Initialize(fnInstrs)
	require.NoError(t, vm.Execute(), "priming function table")

	e := newEnum(t, vm, types.Number())
	vm.dispatch(&opcodes.Instruction{Op: opcodes.OpEnumAppend, Args: []*values.Value{values.NewNumber(2), e}})
	vm.dispatch(&opcodes.Instruction{Op: opcodes.OpEnumAppend, Args: []*values.Value{values.NewNumber(3), e}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2; i++ {
			var job *queue.Job
			for {
				j, ok, _ := vm.Queue.Pop(nil)
				if ok {
					job = j
					break
				}
				time.Sleep(time.Millisecond)
			}
			vm.Queue.MarkRunning(job)
			if err := vm.RunJob(job); err != nil {
				t.Errorf("unexpected error running job: %v", err)
			}
			job.Status = queue.Complete
			if err := vm.Queue.Complete(job); err != nil {
				t.Errorf("unexpected error completing job: %v", err)
			}
		}
	}()

	fn := &values.Value{Tag: values.TagFunction, Fn: &values.Function{Name: "f:square", Params: []*types.Type{types.Number()}, Return: types.Number()}}
	instr := &opcodes.Instruction{Op: opcodes.OpEnumerate, Dest: locVal("out", nil), Args: []*values.Value{values.NewType(types.Number()), e, fn}}
	_, err := vm.dispatch(instr)
	require.NoError(t, err)
	<-done

	out, err := vm.LoadFromStore(loc("out"))
	require.NoError(t, err)
	require.Equal(t, 2, out.Enum.Len())
	first, _ := out.Enum.Get(0)
	second, _ := out.Enum.Get(1)
	assert.Equal(t, float64(4), first.Num, "expected [4,9] preserving order")
	assert.Equal(t, float64(9), second.Num, "expected [4,9] preserving order")
}
