// Package queue implements spec.md §4.5's deferred-call dispatch: a
// pushcall form serializes a call plus its scope and state, enqueues it,
// and a worker elsewhere claims and runs it to completion.
//
// Grounded on pkg/fpm/pool's WorkerPool/Worker/PoolConfig (a static,
// dynamic, or on-demand pool of FastCGI request handlers), reshaped from
// "pool of HTTP workers fed FastCGI requests" into "pool of queue workers
// fed serialized VM calls".
package queue

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/svi-lang/svivm/scope"
	"github.com/svi-lang/svivm/values"
)

// Status is a job's lifecycle state per spec.md §3.7.
type Status int

const (
	Pending Status = iota
	Running
	Complete
	Error
	Unknown
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Running:
		return "RUNNING"
	case Complete:
		return "COMPLETE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// JobID pairs a monotonic per-process counter (cheap, total ordering
// within one node) with a uuid (cheap, collision-free correlation id
// across nodes) — a single counter cannot guarantee uniqueness once
// multiple nodes enqueue independently.
type JobID struct {
	Seq  uint64
	UUID uuid.UUID
}

func (id JobID) String() string { return id.UUID.String() }

var jobSeq uint64

// NewJobID allocates a fresh id, safe for concurrent callers.
func NewJobID() JobID {
	return JobID{Seq: atomic.AddUint64(&jobSeq, 1), UUID: uuid.New()}
}

// Job is a queued deferred call: the function to run, the scope chain and
// program state it was captured from, and the filters a worker's context
// must satisfy to claim it.
type Job struct {
	ID      JobID
	Context uint64
	Call    *values.Function
	Scope   *scope.Scope
	State   *scope.State
	Filters map[string]string
	Status  Status
	Error   error
	Return  *values.Value
}

// Matches reports whether every key in the job's scheduling filters is
// present in workerFilters with the same value, per spec.md §4.5.
func (j *Job) Matches(workerFilters map[string]string) bool {
	for k, v := range j.Filters {
		if workerFilters[k] != v {
			return false
		}
	}
	return true
}
