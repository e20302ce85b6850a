package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/scope"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

func TestReduceProduceRoundTripsPrimitives(t *testing.T) {
	w := New(types.NewArena())
	for _, v := range []*values.Value{
		values.NewString("hello"),
		values.NewNumber(42),
		values.NewBoolean(true),
		values.NewVoid(),
		values.NewLocation(values.Location{Affinity: values.AffinityShared, Name: "counter"}, types.Number()),
	} {
		doc := w.ReduceValue(v)
		got := w.ProduceValue(doc)
		require.Truef(t, got.Equal(v), "round trip mismatch: got %v, want %v", got, v)
	}
}

func TestReduceProduceRoundTripsEnumerationAndMap(t *testing.T) {
	w := New(types.NewArena())

	enum := values.NewEnumeration(types.Number())
	enum.Append(values.NewNumber(1))
	enum.Append(values.NewNumber(2))
	v := &values.Value{Tag: values.TagEnumeration, Decl: types.EnumerableOf(types.Number()), Enum: enum}

	doc := w.ReduceValue(v)
	got := w.ProduceValue(doc)
	require.Equal(t, 2, got.Enum.Len())
	first, _ := got.Enum.Get(0)
	require.Equal(t, float64(1), first.Num)

	m := values.NewMap(types.String())
	m.Set("k", values.NewString("v"))
	mv := &values.Value{Tag: values.TagMap, Decl: types.MapOf(types.String()), Map: m}
	mdoc := w.ReduceValue(mv)
	gotMap := w.ProduceValue(mdoc)
	val, ok := gotMap.Map.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", val.Str)
}

func TestReduceProduceRoundTripsRecursiveObjectType(t *testing.T) {
	arena := types.NewArena()
	node := arena.New()
	arena.SetProp(node, "value", types.Number())
	arena.SetProp(node, "next", types.This())
	arena.Finalize(node)

	w := New(arena)
	nodeType := types.ObjectOf(node)
	doc := w.ReduceType(nodeType)

	destArena := types.NewArena()
	dw := New(destArena)
	got := dw.ProduceType(doc)

	require.Equal(t, types.KindObject, got.Kind)
	ot, ok := destArena.Get(got.Obj)
	require.True(t, ok, "expected the produced object type to exist in the destination arena")

	nextType, ok := ot.Props["next"]
	require.True(t, ok, "expected a 'next' property")
	require.Equal(t, types.KindObject, nextType.Kind)
	require.Equal(t, got.Obj, nextType.Obj, "expected 'next' to resolve back to the same object type")
}

func TestReduceProduceRoundTripsObjectValue(t *testing.T) {
	arena := types.NewArena()
	point := arena.New()
	arena.SetProp(point, "x", types.Number())
	arena.SetProp(point, "y", types.Number())
	arena.Finalize(point)

	obj := values.NewObject(point)
	obj.Set("x", values.NewNumber(3))
	obj.Set("y", values.NewNumber(4))
	v := &values.Value{Tag: values.TagObject, Decl: types.ObjectOf(point), Obj: obj}

	w := New(arena)
	doc := w.ReduceValue(v)

	destArena := types.NewArena()
	dw := New(destArena)
	got := dw.ProduceValue(doc)

	x, ok := got.Obj.Get("x")
	require.True(t, ok)
	require.Equal(t, float64(3), x.Num)

	y, ok := got.Obj.Get("y")
	require.True(t, ok)
	require.Equal(t, float64(4), y.Num)
}

func TestReduceProduceInstruction(t *testing.T) {
	w := New(types.NewArena())
	dest := values.NewLocation(values.Location{Affinity: values.AffinityLocal, Name: "sum"}, types.Number())
	instr := &opcodes.Instruction{
		Op:   opcodes.OpPlus,
		Dest: dest,
		Args: []*values.Value{values.NewNumber(1), values.NewNumber(2)},
		Pos:  opcodes.Position{File: "prog.svi", Line: 3, Col: 1},
	}

	doc := w.ReduceInstruction(instr)
	got := w.ProduceInstruction(doc)

	require.Equal(t, opcodes.OpPlus, got.Op)
	require.True(t, got.Dest.Equal(dest), "expected dest to round trip")
	require.Len(t, got.Args, 2)
	require.Equal(t, float64(1), got.Args[0].Num)
	require.Equal(t, float64(2), got.Args[1].Num)
	require.Equal(t, "prog.svi", got.Pos.File)
	require.Equal(t, 3, got.Pos.Line)
}

func TestReduceProduceScopeChain(t *testing.T) {
	w := New(types.NewArena())
	chain := scope.NewChain()
	chain.Root().Bind("x", values.Location{Affinity: values.AffinityLocal, Name: "x"})

	call := &values.Function{Backend: "local", Name: "f:double"}
	child := chain.EnterCallScope(call, 7)
	child.Bind("y", values.Location{Affinity: values.AffinityLocal, Name: "y"})

	docs := w.ReduceChain(chain.Current())
	require.Len(t, docs, 2)

	destChain := scope.NewChain()
	leaf := w.ProduceChain(destChain, docs)

	_, ok := leaf.LocalLookup("y")
	require.True(t, ok, "expected leaf scope to have binding y")

	pc, ok := leaf.ReturnTo()
	require.True(t, ok)
	require.Equal(t, 7, pc)

	require.NotNil(t, leaf.Call)
	require.Equal(t, "f:double", leaf.Call.Name)
}

func TestReduceProduceState(t *testing.T) {
	w := New(types.NewArena())
	name := values.NewString("f:square")
	st := scope.NewState([]*opcodes.Instruction{
		{Op: opcodes.OpBeginFn, Args: []*values.Value{name, values.NewType(types.Number())}},
		{Op: opcodes.OpMultiply},
		{Op: opcodes.OpReturn},
		{Op: opcodes.OpOut},
	})
	st.PC = 3

	doc := w.ReduceState(st)
	got := w.ProduceState(doc)

	require.Equal(t, 3, got.PC)
	require.Len(t, got.Instructions, 4)

	skip, ok := got.SkipTarget("f:square")
	require.True(t, ok)
	require.Equal(t, 3, skip, "expected recomputed skip target")
}
