package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/values"
)

func TestLockThenUnlockReleasesForAnotherLocker(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	target := locVal("x", nil)

	_, err := vm.dispatch(&opcodes.Instruction{Op: opcodes.OpLock, Args: []*values.Value{target}})
	require.NoError(t, err, "lock")
	_, ok := vm.locks[loc("x")]
	require.True(t, ok, "expected lock to be tracked on the vm")

	_, err = vm.dispatch(&opcodes.Instruction{Op: opcodes.OpUnlock, Args: []*values.Value{target}})
	require.NoError(t, err, "unlock")
	_, ok = vm.locks[loc("x")]
	assert.False(t, ok, "expected lock to be released after unlock")
}

func TestUnlockUnheldLocationIsNoOp(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	instr := &opcodes.Instruction{Op: opcodes.OpUnlock, Args: []*values.Value{locVal("never-locked", nil)}}
	_, err := vm.dispatch(instr)
	assert.NoError(t, err, "expected unlock of an unheld location to be a no-op")
}
