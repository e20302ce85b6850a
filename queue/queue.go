package queue

import (
	"sync"

	"github.com/svi-lang/svivm/values"
)

// Store is the persistence surface a Queue needs, so an in-process queue
// and a cross-node SQL-backed queue (sql_store.go) share the same push
// /pop/update contract. Grounded on storage.Store's own narrow-surface
// split between the in-memory and SQL-backed implementations.
type Store interface {
	Enqueue(j *Job) error
	Claim(workerFilters map[string]string) (*Job, bool, error)
	Update(j *Job) error
}

// MemoryStore is an in-process Store, a plain mutex-guarded slice scanned
// front-to-back for the first job whose filters match.
type MemoryStore struct {
	mu   sync.Mutex
	jobs []*Job
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Enqueue(j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, j)
	return nil
}

func (m *MemoryStore) Claim(workerFilters map[string]string) (*Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Status == Pending && j.Matches(workerFilters) {
			j.Status = Running
			return j, true, nil
		}
	}
	return nil, false, nil
}

func (m *MemoryStore) Update(j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.jobs {
		if existing.ID == j.ID {
			m.jobs[i] = j
			return nil
		}
	}
	return nil
}

// Queue is the push/pop/tick surface of spec.md §4.5, backed by a Store
// for the actual job records and a ContextStack for nested drain scopes.
type Queue struct {
	store    Store
	contexts *ContextStack
	mu       sync.Mutex
}

func New(store Store) *Queue {
	return &Queue{store: store, contexts: NewContextStack()}
}

// Push enqueues job under the current queue context, per `pushcall`.
func (q *Queue) Push(j *Job) error {
	ctx := q.contexts.Current()
	j.Context = ctx.ID

	q.mu.Lock()
	ctx.pending++
	q.mu.Unlock()

	return q.store.Enqueue(j)
}

// Pop claims the next job matching workerFilters, or reports none found.
func (q *Queue) Pop(workerFilters map[string]string) (*Job, bool, error) {
	return q.store.Claim(workerFilters)
}

// Tick does nothing: claiming and running jobs is driven by a Worker
// (worker.go), and the pending/running accounting that Idle and Drain
// rely on is kept by Push, MarkRunning and Complete. Tick collects no
// completions and claims or runs no job.
func (q *Queue) Tick() {}

// Complete records a finished job's outcome and merges its return value
// into its context's return map, per step 4-5 of spec.md §4.5's
// "executing a job on a worker".
func (q *Queue) Complete(j *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ctx, ok := q.contexts.ByID(j.Context); ok {
		ctx.running--
		if ctx.running < 0 {
			ctx.running = 0
		}
		if j.Status == Complete && j.Return != nil {
			ctx.returns[j.ID] = j.Return
		}
	}
	return q.store.Update(j)
}

// MarkRunning moves accounting for a claimed job from pending to running.
func (q *Queue) MarkRunning(j *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ctx, ok := q.contexts.ByID(j.Context); ok {
		ctx.pending--
		if ctx.pending < 0 {
			ctx.pending = 0
		}
		ctx.running++
	}
}

// EnterContext, ResumeContext and PopContext implement the
// entercontext/resumecontext/popcontext opcode family.
func (q *Queue) EnterContext() uint64          { return q.contexts.Enter().ID }
func (q *Queue) ResumeContext(id uint64) bool  { return q.contexts.Resume(id) }
func (q *Queue) PopContext() uint64            { return q.contexts.Pop().ID }

// Idle reports whether the current queue context is drained.
func (q *Queue) Idle() bool {
	return q.contexts.Current().Idle()
}

// Drain returns the accumulated return values for the current context
// and clears them, for `drain`'s "merge pending return values into the
// local store" step. The caller is responsible for the retry-sleep loop
// that waits for Idle() first.
func (q *Queue) Drain() map[JobID]*values.Value {
	q.mu.Lock()
	defer q.mu.Unlock()
	ctx := q.contexts.Current()
	out := make(map[JobID]*values.Value, len(ctx.returns))
	for id, v := range ctx.returns {
		out[id] = v
		delete(ctx.returns, id)
	}
	return out
}
