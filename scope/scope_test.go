package scope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/opcodes"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
)

func TestLookupPrefersInnermostWithoutClobberingParent(t *testing.T) {
	c := NewChain()
	c.Root().Bind("x", values.Location{Affinity: values.AffinityLocal, Name: "x-root"})

	c.EnterScope()
	c.Current().Bind("x", values.Location{Affinity: values.AffinityLocal, Name: "x"})
	loc, _, ok := c.Lookup("x")
	require.True(t, ok, "expected x to resolve from the child scope")
	require.Equal(t, "x", loc.Name, "expected to resolve the child's binding")

	_, err := c.ExitScope()
	require.NoError(t, err)
	loc, _, ok = c.Lookup("x")
	require.True(t, ok)
	require.Equal(t, "x-root", loc.Name, "expected root binding to resurface after exiting child scope")
}

func TestExitRootScopeFails(t *testing.T) {
	c := NewChain()
	_, err := c.ExitScope()
	require.Error(t, err, "expected an error exiting the root scope")
}

type fakeLock struct{ released bool }

func (f *fakeLock) Release() error { f.released = true; return nil }

func TestExitScopeReleasesTrackedLocks(t *testing.T) {
	c := NewChain()
	c.EnterScope()
	lock := &fakeLock{}
	c.Current().TrackLock(lock)

	_, err := c.ExitScope()
	require.NoError(t, err)
	require.True(t, lock.released, "expected lock to be released on scope exit")
}

func TestReturnToCallerFindsInnermostPendingReturn(t *testing.T) {
	c := NewChain()
	call := &values.Function{Backend: "local", Name: "f:double"}
	c.EnterCallScope(call, 42)
	c.Root().CaptureReturn = true

	pc, jumped, found := c.ReturnToCaller(values.NewNumber(9), true)
	require.True(t, found)
	require.True(t, jumped)
	require.Equal(t, 42, pc)
	require.NotNil(t, c.Root().ReturnValue)
	require.Equal(t, float64(9), c.Root().ReturnValue.Num)
	require.False(t, c.Root().CaptureReturn, "expected capture_return to be cleared after use")
}

func TestReturnToCallerReportsNotFoundAtRoot(t *testing.T) {
	c := NewChain()
	_, _, found := c.ReturnToCaller(values.NewVoid(), true)
	require.False(t, found, "expected no pending return at the root scope")
}

func TestHandlerCandidatesSearchInnermostFirst(t *testing.T) {
	c := NewChain()
	outer := Handler{ID: 1, Selector: UniversalSelector()}
	c.Root().PushHandler(outer)

	c.EnterScope()
	inner := Handler{ID: 2, Selector: CodeSelector(404)}
	c.Current().PushHandler(inner)

	cands := c.Candidates()
	require.Len(t, cands, 2)
	require.Equal(t, uint64(2), cands[0].Handler.ID, "expected innermost handler first")
	require.Equal(t, uint64(1), cands[1].Handler.ID, "expected outer handler second")
}

func TestPopHandlerByIDSearchesWholeChain(t *testing.T) {
	c := NewChain()
	c.Root().PushHandler(Handler{ID: 7, Selector: UniversalSelector()})
	c.EnterScope()

	require.True(t, c.PopHandlerByID(7), "expected to find and pop handler 7 from an ancestor scope")
	require.Empty(t, c.Candidates(), "expected no handlers left after popping the only one")
}

func TestStateSkipsOverFunctionBodyOnFallthrough(t *testing.T) {
	name := values.NewString("f:square")
	instructions := []*opcodes.Instruction{
		{Op: opcodes.OpBeginFn, Args: []*values.Value{name, values.NewType(types.Number())}},
		{Op: opcodes.OpMultiply},
		{Op: opcodes.OpReturn},
		{Op: opcodes.OpOut},
	}
	st := NewState(instructions)

	entry, ok := st.EntryOf("f:square")
	require.True(t, ok)
	require.Equal(t, 0, entry)

	skip, ok := st.SkipTarget("f:square")
	require.True(t, ok)
	require.Equal(t, 3, skip, "expected skip target just past return")

	require.False(t, st.AtEnd(3), "index 3 still holds the out instruction")
	require.True(t, st.AtEnd(4), "index 4 is past the tape")
}

func TestScopeExitErrorIsDescriptive(t *testing.T) {
	c := NewChain()
	_, err := c.ExitScope()
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot exit the root scope")
}
