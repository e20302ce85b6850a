package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveAssignability(t *testing.T) {
	assert.True(t, Number().AssignableTo(Ambiguous(), nil), "everything is assignable to AMBIGUOUS")
	assert.False(t, Number().AssignableTo(String(), nil), "NUMBER should not be assignable to STRING")
	assert.True(t, String().AssignableTo(String(), nil), "STRING should be assignable to itself")
}

func TestContainerCovariance(t *testing.T) {
	assert.True(t, MapOf(Number()).AssignableTo(MapOf(Number()), nil))
	assert.False(t, MapOf(Number()).AssignableTo(MapOf(String()), nil))
	assert.True(t, EnumerableOf(Number()).AssignableTo(EnumerableOf(Ambiguous()), nil))
}

func TestLambdaParameterCovariance(t *testing.T) {
	// spec.md §3.1: params are treated covariantly, not contravariantly,
	// so a NUMBER-taking lambda is assignable to an AMBIGUOUS-taking one,
	// which the contravariant rule would reject.
	same := Lambda1(Number(), Boolean())
	sameAgain := Lambda1(Number(), Boolean())
	assert.True(t, same.AssignableTo(sameAgain, nil), "LAMBDA1 with identical param/result types should be assignable")
	assert.True(t, Lambda1(Number(), Boolean()).AssignableTo(Lambda1(Ambiguous(), Boolean()), nil), "LAMBDA1 parameters should be checked covariantly")
}

func TestOpaqueInterning(t *testing.T) {
	a := Opaque("FileHandle")
	b := Opaque("FileHandle")
	require.Same(t, a, b, "OPAQUE types with the same name must be interned to the same pointer")
	assert.True(t, a.AssignableTo(b, nil), "identical OPAQUE types should be assignable")
	assert.False(t, Opaque("A").AssignableTo(Opaque("B"), nil), "distinct OPAQUE names should not be assignable")
}

func TestObjectStructuralAssignability(t *testing.T) {
	arena := NewArena()
	wide := arena.New()
	arena.SetProp(wide, "name", String())
	arena.Finalize(wide)

	narrow := arena.New()
	arena.SetProp(narrow, "name", String())
	arena.SetProp(narrow, "age", Number())
	arena.Finalize(narrow)

	assert.True(t, arena.IsSubset(narrow, wide), "an object with a superset of properties should be assignable to the narrower declared type")
	assert.False(t, arena.IsSubset(wide, narrow), "an object missing a required property should not be assignable")
}

func TestRecursiveObjectTypeViaThisPlaceholder(t *testing.T) {
	arena := NewArena()
	node := arena.New()
	arena.SetProp(node, "value", Number())
	arena.SetProp(node, "next", This())
	arena.Finalize(node)

	ot, ok := arena.Get(node)
	require.True(t, ok, "expected object type to exist")
	next := ot.Props["next"]
	assert.Equal(t, KindObject, next.Kind)
	assert.Equal(t, node, next.Obj, "THIS placeholder should resolve to a self-reference after finalize")
}

func TestFinalizedObjectTypeRejectsMutation(t *testing.T) {
	arena := NewArena()
	id := arena.New()
	arena.Finalize(id)
	assert.False(t, arena.SetProp(id, "x", Number()), "finalized object types must reject further property declarations")
}
