package queue

import (
	"sync/atomic"
	"time"
)

// Runner executes exactly one claimed job to completion, restoring a VM
// from the job's captured scope/state/call and writing the return value
// back. Implemented by vm.VirtualMachine; kept as an interface here so
// package queue never imports package vm.
type Runner interface {
	RunJob(j *Job) error
}

// WorkerState mirrors worker_base.go's atomic state machine.
type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerBusy
	WorkerStopping
)

// Worker repeatedly ticks a Queue, claiming and running jobs whose
// filters match its own, per spec.md §4.5's "sleep; tick()" loop.
// Grounded closely on worker_base.go's Worker.run() select-loop (stop
// channel plus a busy/idle state machine), with FastCGI request handling
// replaced by "restore VM, run exactly one call, write back the return
// value".
type Worker struct {
	id           int
	queue        *Queue
	runner       Runner
	filters      map[string]string
	pollInterval time.Duration

	state        atomic.Int32
	requestCount uint64
	stopChan     chan struct{}
}

func NewWorker(id int, q *Queue, runner Runner, filters map[string]string, pollInterval time.Duration) *Worker {
	w := &Worker{
		id:           id,
		queue:        q,
		runner:       runner,
		filters:      filters,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
	}
	w.state.Store(int32(WorkerIdle))
	return w
}

func (w *Worker) Start() { go w.run() }

func (w *Worker) run() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Worker) tick() {
	job, ok, err := w.queue.Pop(w.filters)
	if err != nil || !ok {
		return
	}

	w.state.Store(int32(WorkerBusy))
	defer w.state.Store(int32(WorkerIdle))

	w.queue.MarkRunning(job)
	atomic.AddUint64(&w.requestCount, 1)

	if err := w.runner.RunJob(job); err != nil {
		job.Status = Error
		job.Error = err
	} else if job.Status != Error {
		job.Status = Complete
	}
	w.queue.Complete(job)
}

func (w *Worker) Stop() {
	if WorkerState(w.state.Load()) == WorkerStopping {
		return
	}
	w.state.Store(int32(WorkerStopping))
	close(w.stopChan)
}

func (w *Worker) IsIdle() bool { return WorkerState(w.state.Load()) == WorkerIdle }

func (w *Worker) RequestCount() uint64 { return atomic.LoadUint64(&w.requestCount) }
