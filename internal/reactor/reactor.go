// Package reactor implements the concurrency substrate this core's sessions
// run on: a single I/O-task reactor multiplexed across a fixed worker pool,
// and per-connection Serializers built on top of it that guarantee
// non-concurrent, submission-ordered execution of the tasks posted through
// them.
//
// A worker-goroutine pool reads from a shared task channel (the Reactor),
// and a per-connection actor mailbox (the Serializer) has a drain loop that
// is itself just one more task submitted to that pool — this is what lets
// any worker goroutine execute any connection's next step while still
// guaranteeing that one connection's own steps never overlap each other.
package reactor

import (
	"runtime"
	"sync"
)

// Reactor dispatches submitted tasks onto a fixed pool of worker
// goroutines. It owns no domain state; it is purely a scheduler.
type Reactor struct {
	tasks   chan func()
	workers int
	wg      sync.WaitGroup

	startOnce sync.Once

	// mu guards stopped and the decision to send on tasks. Post and Stop
	// both take it before touching the channel so a send can never race a
	// close of the same channel — Stop cannot close tasks while a Post is
	// still inside its own send, and a Post that arrives after Stop sees
	// stopped true under the same lock and never touches the channel at
	// all.
	mu      sync.Mutex
	stopped bool
}

// New creates a Reactor with the given worker count. workers <= 0 resolves
// to runtime.GOMAXPROCS(0), the "0 means hardware concurrency" reading of
// the threads configuration knob.
func New(workers int) *Reactor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Reactor{
		tasks:   make(chan func(), 4096),
		workers: workers,
	}
}

// Run starts the worker goroutines. It returns immediately; call Stop to
// shut the pool down and wait for in-flight tasks to finish.
func (r *Reactor) Run() {
	r.startOnce.Do(func() {
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.worker()
		}
	})
}

func (r *Reactor) worker() {
	defer r.wg.Done()
	for task := range r.tasks {
		runTask(task)
	}
}

// runTask executes a task, isolating a panicking task so it cannot take
// down the worker goroutine (and with it, every other connection's
// scheduling) — nothing on one connection may propagate as an unhandled
// failure to another.
func runTask(task func()) {
	defer func() {
		recover()
	}()
	task()
}

// Post submits a task for execution on some worker goroutine. It never
// blocks the caller beyond channel backpressure, and never runs the task
// inline. A task posted after Stop has been called is dropped rather than
// sent, since the channel may already be closed by then.
func (r *Reactor) Post(task func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.tasks <- task
}

// Stop closes the task channel and waits for every worker to drain and
// exit. Safe to call more than once; only the first call closes anything.
// Pending Serializer tasks already queued on a Serializer's own mailbox are
// not cancelled by this call — cancelling the reactor does not by itself
// cancel pending serialized tasks; those still run (once a worker is
// available) but must observe the owning session's stopped flag.
func (r *Reactor) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.tasks)
	r.mu.Unlock()

	r.wg.Wait()
}

// MakeSerializer returns a new Serializer bound to this reactor.
func (r *Reactor) MakeSerializer() *Serializer {
	return newSerializer(r)
}
