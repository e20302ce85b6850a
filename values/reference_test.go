package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/types"
)

func TestNumberEquality(t *testing.T) {
	a := NewNumber(5)
	b := NewNumber(5)
	c := NewNumber(6)
	assert.True(t, a.Equal(b), "equal numbers should compare equal")
	assert.False(t, a.Equal(c), "different numbers should not compare equal")
}

func TestFunctionEqualityByBackendNameAndCurriedArgs(t *testing.T) {
	base := &Function{Backend: "local", Name: "f:add"}
	curried1 := base.Curry(NewNumber(1))
	curried2 := base.Curry(NewNumber(1))
	curriedDifferent := base.Curry(NewNumber(2))

	assert.True(t, curried1.Equal(curried2), "functions with identical backend+name+curried args should be equal")
	assert.False(t, curried1.Equal(curriedDifferent), "functions with different curried args should not be equal")
}

func TestEnumerationOrderingAndMutation(t *testing.T) {
	e := NewEnumeration(types.Number())
	e.Append(NewNumber(10))
	e.Append(NewNumber(20))
	e.Prepend(NewNumber(5))

	require.Equal(t, 3, e.Len())
	first, _ := e.Get(0)
	assert.Equal(t, float64(5), first.Num, "expected prepend to place 5 at index 0")

	assert.True(t, e.Set(1, NewNumber(99)), "Set on a valid index should succeed")
	second, _ := e.Get(1)
	assert.Equal(t, float64(99), second.Num)
}

func TestMapStringKeyedRoundTrip(t *testing.T) {
	m := NewMap(types.Number())
	m.Set("x", NewNumber(7))
	v, ok := m.Get("x")
	require.True(t, ok)
	assert.Equal(t, float64(7), v.Num)

	_, ok = m.Get("missing")
	assert.False(t, ok, "expected missing key to report !ok")
}

func TestReturnValueMapPreservesIndexOrder(t *testing.T) {
	rvm := NewReturnValueMap()
	// Simulate out-of-order completion across workers.
	rvm.Put(2, NewNumber(31))
	rvm.Put(0, NewNumber(11))
	rvm.Put(1, NewNumber(21))

	ordered := rvm.Ordered(3)
	want := []float64{11, 21, 31}
	for i, v := range ordered {
		assert.Equalf(t, want[i], v.Num, "index %d", i)
	}
}

func TestNewReturnValueMapValueWrapsRawMap(t *testing.T) {
	rvm := NewReturnValueMap()
	rvm.Put(0, NewNumber(1))

	wrapped := NewReturnValueMapValue(rvm)
	require.Equal(t, TagReturnValueMap, wrapped.Tag)
	require.Same(t, rvm, wrapped.RVMap)
}
