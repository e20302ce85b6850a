package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

func primeHandler(t *testing.T, vm *VirtualMachine, name string, body []*opcodes.Instruction) {
	t.Helper()
	full := append([]*opcodes.Instruction{
		{Op: opcodes.OpBeginFn, Args: []*values.Value{values.NewString(name)}},
	}, body...)
	vm.Initialize(full)
	require.NoErrorf(t, vm.Execute(), "priming %s", name)
}

func TestRaiseInvokesUniversalHandler(t *testing.T) {
	vm, _, _ := newTestVM()
	primeHandler(t, vm, "f:handler", []*opcodes.Instruction{
		{Op: opcodes.OpFnParam, Args: []*values.Value{values.NewType(types.Number()), locVal("code", nil)}},
		{Op: opcodes.OpAssignValue, Dest: locVal("caught", types.Number()), Args: []*values.Value{locVal("code", nil)}},
		{Op: opcodes.OpReturn},
	})
	// raise curries the raised code onto the handler as its sole argument;
	// fnparam above pulls it into $l:code.
	handlerFn := &values.Value{Tag: values.TagFunction, Fn: &values.Function{Name: "f:handler", Params: []*types.Type{types.Number()}}}

	push := &opcodes.Instruction{Op: opcodes.OpPushExHandler, Dest: locVal("hid", nil), Args: []*values.Value{handlerFn}}
	_, err := vm.dispatch(push)
	require.NoError(t, err, "pushexhandler")

	raise := &opcodes.Instruction{Op: opcodes.OpRaise, Args: []*values.Value{values.NewNumber(42)}}
	_, err = vm.dispatch(raise)
	require.NoError(t, err, "raise")
	_, ok := vm.ExitCode()
	assert.False(t, ok, "expected a matched raise not to set an exit code")
}

func TestRaiseWithCodeSelectorOnlyMatchesItsCode(t *testing.T) {
	vm, _, _ := newTestVM()
	primeHandler(t, vm, "f:handler", []*opcodes.Instruction{{Op: opcodes.OpReturn}})
	handlerFn := &values.Value{Tag: values.TagFunction, Fn: &values.Function{Name: "f:handler"}}

	push := &opcodes.Instruction{Op: opcodes.OpPushExHandler, Dest: locVal("hid", nil), Args: []*values.Value{handlerFn, values.NewNumber(7)}}
	_, err := vm.dispatch(push)
	require.NoError(t, err, "pushexhandler")

	raise := &opcodes.Instruction{Op: opcodes.OpRaise, Args: []*values.Value{values.NewNumber(8)}}
	_, err = vm.dispatch(raise)
	require.NoError(t, err, "raise")
	code, ok := vm.ExitCode()
	require.True(t, ok, "expected an unmatched raise(8) to halt")
	assert.Equal(t, float64(8), code)
}

func TestUnhandledRaiseSetsExitCode(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	raise := &opcodes.Instruction{Op: opcodes.OpRaise, Args: []*values.Value{values.NewNumber(13)}}
	_, err := vm.dispatch(raise)
	require.NoError(t, err)
	code, ok := vm.ExitCode()
	require.True(t, ok)
	assert.Equal(t, float64(13), code)
	assert.True(t, vm.Halted(), "expected an unhandled raise to halt the VM")
}

func TestPopExHandlerRemovesHandler(t *testing.T) {
	vm, _, _ := newTestVM()
	primeHandler(t, vm, "f:handler", []*opcodes.Instruction{{Op: opcodes.OpReturn}})
	handlerFn := &values.Value{Tag: values.TagFunction, Fn: &values.Function{Name: "f:handler"}}

	push := &opcodes.Instruction{Op: opcodes.OpPushExHandler, Dest: locVal("hid", nil), Args: []*values.Value{handlerFn}}
	vm.dispatch(push)
	hid, _ := vm.LoadFromStore(loc("hid"))

	pop := &opcodes.Instruction{Op: opcodes.OpPopExHandler, Args: []*values.Value{hid}}
	_, err := vm.dispatch(pop)
	require.NoError(t, err, "popexhandler")

	raise := &opcodes.Instruction{Op: opcodes.OpRaise, Args: []*values.Value{values.NewNumber(1)}}
	vm.dispatch(raise)
	_, ok := vm.ExitCode()
	assert.True(t, ok, "expected raise to be unhandled after its handler was popped")
}

func TestResumeInvokesFunction(t *testing.T) {
	vm, _, _ := newTestVM()
	primeHandler(t, vm, "f:cont", []*opcodes.Instruction{
		{Op: opcodes.OpAssignValue, Dest: locVal("ran", types.Boolean()), Args: []*values.Value{values.NewBoolean(true)}},
		{Op: opcodes.OpReturn},
	})
	fn := &values.Value{Tag: values.TagFunction, Fn: &values.Function{Name: "f:cont"}}
	instr := &opcodes.Instruction{Op: opcodes.OpResume, Args: []*values.Value{fn}}
	_, err := vm.dispatch(instr)
	require.NoError(t, err)
	ran, err := vm.LoadFromStore(loc("ran"))
	require.NoError(t, err)
	assert.True(t, ran.Bool, "expected resume to run its function")
}
