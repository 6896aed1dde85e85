// Package queue implements the TaskQueue collaborator (spec §4.6/§5): a
// single-consumer FIFO that serializes every mutating group/device
// operation through one worker goroutine, so the trust store's
// read-modify-persist sections never race with each other. Run and
// Interrupt have the shape a github.com/oklog/run group expects, after
// cmd/dex/serve.go's supervised goroutines; devauth.Init starts Run on a
// plain goroutine.
package queue

import (
	"sync/atomic"

	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/pkg/log"
)

// Job is one unit of work the worker goroutine runs to completion before
// picking up the next. Jobs never run concurrently with each other.
type Job func()

// Queue is the TaskQueue: callers Enqueue work, a single worker drains it
// in order, and Close stops accepting new work and waits for the worker to
// drain what's left.
type Queue struct {
	jobs    chan Job
	done    chan struct{}
	closed  chan struct{}
	log     log.Logger
	started atomic.Bool
}

// New constructs a Queue with the given backlog capacity. depth bounds how
// many pending jobs Enqueue will accept before blocking its caller
// (back-pressure, spec §4.6: "no unbounded growth").
func New(depth int, logger log.Logger) *Queue {
	if logger == nil {
		logger = log.Nop
	}
	if depth < 1 {
		depth = 1
	}
	return &Queue{
		jobs:   make(chan Job, depth),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		log:    logger,
	}
}

// Run starts the worker loop and blocks until Close (or Interrupt) is
// called, draining any jobs already enqueued before it returns. If Close
// already ran before the worker started, Run returns at once. Intended to
// be registered with a run.Group alongside other supervised goroutines, the
// way cmd/dex/serve.go registers each listener.
func (q *Queue) Run() error {
	if !q.started.CompareAndSwap(false, true) {
		return nil
	}
	for {
		select {
		case j, ok := <-q.jobs:
			if !ok {
				close(q.closed)
				return nil
			}
			q.runJob(j)
		case <-q.done:
			q.drain()
			close(q.closed)
			return nil
		}
	}
}

func (q *Queue) runJob(j Job) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorf("task queue: job panicked: %v", r)
		}
	}()
	j()
}

func (q *Queue) drain() {
	for {
		select {
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			q.runJob(j)
		default:
			return
		}
	}
}

// Interrupt stops the run loop, for registration as a run.Group interrupt
// function: `g.Add(q.Run, q.Interrupt)`.
func (q *Queue) Interrupt(error) {
	q.Close()
}

// Enqueue submits a job to run on the worker goroutine. Blocks if the
// queue is at capacity. Returns CodeServiceNeedsRestart if the queue has
// already been closed.
func (q *Queue) Enqueue(j Job) error {
	select {
	case <-q.done:
		return errors.New(errors.CodeServiceNeedsRestart, "task queue is closed")
	default:
	}
	select {
	case q.jobs <- j:
		return nil
	case <-q.done:
		return errors.New(errors.CodeServiceNeedsRestart, "task queue is closed")
	}
}

// Alive reports whether the queue is still accepting work: true from
// construction (before Run starts too) until Close has been called. A cheap
// liveness probe for a health check, distinct from backlog depth.
func (q *Queue) Alive() bool {
	select {
	case <-q.done:
		return false
	default:
		return true
	}
}

// Close stops accepting new jobs and waits for the worker to drain the
// backlog and exit. Safe to call more than once.
func (q *Queue) Close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
	if q.started.CompareAndSwap(false, true) {
		// No worker ever started: drain the backlog here instead.
		q.drain()
		close(q.closed)
		return
	}
	<-q.closed
}
