package vm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/providers"
	"github.com/svi-lang/svivm/queue"
	"github.com/svi-lang/svivm/storage"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
	"github.com/svi-lang/svivm/wire"
)

// newTestVM builds a VM with an in-process LOCAL/SHARED/FUNCTION store, an
// in-memory queue, and no providers registered, mirroring the minimal
// wiring cmd/svivm's REPL does for a standalone run.
func newTestVM() (*VirtualMachine, *strings.Builder, *strings.Builder) {
	store := storage.NewLocal(values.AffinityLocal, values.AffinityShared, values.AffinityFunction, values.AffinityObjectProp)
	arena := types.NewArena()
	w := wire.New(arena)
	q := queue.New(queue.NewMemoryStore())
	reg := providers.NewRegistry()

	var out, errOut strings.Builder
	vm := New(store, arena, w, q, reg, func(s string) { out.WriteString(s) }, func(s string) { errOut.WriteString(s) })
	return vm, &out, &errOut
}

func loc(name string) values.Location {
	return values.Location{Affinity: values.AffinityLocal, Name: name}
}

func locVal(name string, t *types.Type) *values.Value {
	return values.NewLocation(loc(name), t)
}

func TestStepAdvancesAndHaltsAtEnd(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize([]*opcodes.Instruction{
		{Op: opcodes.OpAssignValue, Dest: locVal("x", types.Number()), Args: []*values.Value{values.NewNumber(1)}},
	})
	require.NoError(t, vm.Execute())
	assert.True(t, vm.Halted(), "expected VM to halt after running off the tape")
	v, err := vm.LoadFromStore(loc("x"))
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.Num)
}

func TestAssignValueInfersDeclaredTypeOnFirstWrite(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize(nil)
	instr := &opcodes.Instruction{Op: opcodes.OpAssignValue, Dest: locVal("x", nil), Args: []*values.Value{values.NewString("hi")}}
	_, err := vm.dispatch(instr)
	require.NoError(t, err)
	typ, ok, err := vm.Store.TypeOf(loc("x"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.KindString, typ.Kind)

	bad := &opcodes.Instruction{Op: opcodes.OpAssignValue, Dest: locVal("x", nil), Args: []*values.Value{values.NewNumber(1)}}
	_, err = vm.dispatch(bad)
	assert.Error(t, err, "expected a type mismatch storing a NUMBER into a STRING-declared location")
}

func TestExitOpcodeHalts(t *testing.T) {
	vm, _, _ := newTestVM()
	vm.Initialize([]*opcodes.Instruction{
		{Op: opcodes.OpExit},
		{Op: opcodes.OpAssignValue, Dest: locVal("x", types.Number()), Args: []*values.Value{values.NewNumber(1)}},
	})
	require.NoError(t, vm.Execute())
	ok, _ := vm.Store.Has(loc("x"))
	assert.False(t, ok, "expected exit to halt before the following instruction ran")
}
