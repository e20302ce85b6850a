package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/svi-lang/svivm/values"
)

func TestJobMatchesRequiresAllFilterKeys(t *testing.T) {
	j := &Job{Filters: map[string]string{"region": "us", "gpu": "true"}}
	require.True(t, j.Matches(map[string]string{"region": "us", "gpu": "true", "extra": "ignored"}), "expected a superset of filters to match")
	require.False(t, j.Matches(map[string]string{"region": "us"}), "expected a missing filter key to fail to match")
	require.False(t, j.Matches(map[string]string{"region": "eu", "gpu": "true"}), "expected a mismatched filter value to fail to match")
}

func TestMemoryStoreClaimTakesOnlyMatchingJob(t *testing.T) {
	store := NewMemoryStore()
	j1 := &Job{ID: NewJobID(), Status: Pending, Filters: map[string]string{"kind": "a"}}
	j2 := &Job{ID: NewJobID(), Status: Pending, Filters: map[string]string{"kind": "b"}}
	store.Enqueue(j1)
	store.Enqueue(j2)

	claimed, ok, err := store.Claim(map[string]string{"kind": "b"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, j2.ID, claimed.ID)
	require.Equal(t, Running, claimed.Status)

	_, ok, _ = store.Claim(map[string]string{"kind": "b"})
	require.False(t, ok, "expected no second pending job matching kind=b")
}

func TestContextStackEnterResumePop(t *testing.T) {
	cs := NewContextStack()
	root := cs.Current()

	child := cs.Enter()
	require.Equal(t, child.ID, cs.Current().ID, "expected entering a context to make it current")

	require.True(t, cs.Resume(root.ID), "expected resuming the root context to succeed")
	require.Equal(t, root.ID, cs.Current().ID)

	cs.Resume(child.ID)
	popped := cs.Pop()
	require.Equal(t, child.ID, popped.ID)
	require.Equal(t, root.ID, cs.Current().ID, "expected current to fall back to root after popping the only child")
}

func TestContextStackPopRootIsNoOp(t *testing.T) {
	cs := NewContextStack()
	root := cs.Current()
	popped := cs.Pop()
	require.Equal(t, root.ID, popped.ID)
	require.Equal(t, root.ID, cs.Current().ID)
}

func TestQueuePushCompleteMergesReturnValue(t *testing.T) {
	q := New(NewMemoryStore())
	j := &Job{ID: NewJobID(), Status: Pending, Filters: map[string]string{}}
	require.NoError(t, q.Push(j))
	require.False(t, q.Idle(), "expected context to be non-idle with a pending job")

	q.MarkRunning(j)
	j.Status = Complete
	j.Return = values.NewNumber(42)
	require.NoError(t, q.Complete(j))
	require.True(t, q.Idle(), "expected context to be idle after the only job completes")

	returns := q.Drain()
	v, ok := returns[j.ID]
	require.True(t, ok)
	require.Equal(t, float64(42), v.Num)
	require.Empty(t, q.Drain(), "expected a second drain to be empty")
}

type fakeRunner struct {
	err error
	ran int
}

func (f *fakeRunner) RunJob(j *Job) error {
	f.ran++
	if f.err != nil {
		return f.err
	}
	j.Return = values.NewBoolean(true)
	return nil
}

func TestWorkerTickClaimsRunsAndCompletesAJob(t *testing.T) {
	q := New(NewMemoryStore())
	j := &Job{ID: NewJobID(), Status: Pending, Filters: map[string]string{}}
	q.Push(j)

	runner := &fakeRunner{}
	w := NewWorker(1, q, runner, map[string]string{}, time.Millisecond)
	w.tick()

	require.Equal(t, 1, runner.ran, "expected worker to run exactly one job")
	require.Equal(t, Complete, j.Status)
}

func TestWorkerTickMarksJobErrorOnRunnerFailure(t *testing.T) {
	q := New(NewMemoryStore())
	j := &Job{ID: NewJobID(), Status: Pending, Filters: map[string]string{}}
	q.Push(j)

	runner := &fakeRunner{err: errors.New("boom")}
	w := NewWorker(1, q, runner, map[string]string{}, time.Millisecond)
	w.tick()

	require.Equal(t, Error, j.Status)
}
