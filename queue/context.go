package queue

import (
	"sync"

	"github.com/svi-lang/svivm/values"
)

// Context is a scoped container for deferred jobs, per spec.md's
// `entercontext`/`resumecontext`/`popcontext` opcodes: a batch of pushed
// calls (e.g. the elements of an `enumerate`) can be drained
// independently of whatever else the queue is running.
type Context struct {
	ID      uint64
	pending int
	running int
	returns map[JobID]*values.Value
}

func newContext(id uint64) *Context {
	return &Context{ID: id, returns: make(map[JobID]*values.Value)}
}

// Idle reports whether this context has no pending or running jobs left,
// the condition `drain` retry-sleeps on per spec.md §4.5.
func (c *Context) Idle() bool {
	return c.pending == 0 && c.running == 0
}

// ContextStack tracks the nested queue contexts of one VM, grounded on
// vm/output_buffer.go's OutputBufferStack (a mutex-guarded push/pop
// stack), reused here for contexts instead of output buffers.
type ContextStack struct {
	mu      sync.Mutex
	nextID  uint64
	stack   []*Context
	current *Context
}

// NewContextStack creates a stack with a single root context already
// entered, so jobs pushed before any explicit entercontext still land
// somewhere.
func NewContextStack() *ContextStack {
	cs := &ContextStack{}
	root := cs.allocContext()
	cs.stack = []*Context{root}
	cs.current = root
	return cs
}

func (cs *ContextStack) allocContext() *Context {
	cs.nextID++
	return newContext(cs.nextID)
}

// Enter pushes a fresh context and makes it current.
func (cs *ContextStack) Enter() *Context {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c := cs.allocContext()
	cs.stack = append(cs.stack, c)
	cs.current = c
	return c
}

// Resume makes the context with the given id current again without
// popping anything above it, for `resumecontext id`.
func (cs *ContextStack) Resume(id uint64) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range cs.stack {
		if c.ID == id {
			cs.current = c
			return true
		}
	}
	return false
}

// Pop removes the current context and returns to the one below it, for
// `popcontext`. Popping the root context is a no-op since there must
// always be a current context to push jobs into.
func (cs *ContextStack) Pop() *Context {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.stack) <= 1 {
		return cs.current
	}
	popped := cs.stack[len(cs.stack)-1]
	cs.stack = cs.stack[:len(cs.stack)-1]
	cs.current = cs.stack[len(cs.stack)-1]
	return popped
}

// Current returns the context new jobs are pushed into.
func (cs *ContextStack) Current() *Context {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.current
}

// ByID looks up a context without changing which one is current.
func (cs *ContextStack) ByID(id uint64) (*Context, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range cs.stack {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}
