package reactor

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// Serializer guarantees that every task submitted to it runs to completion
// before the next one starts, even though those tasks execute on whichever
// worker goroutine the owning Reactor happens to hand them to. This is the
// Go stand-in for the spec's per-connection strand: one Serializer per
// session gives each connection FIFO, non-overlapping execution of its own
// callbacks while still sharing the process-wide worker pool.
//
// The implementation is a classic work-queue actor: tasks accumulate in a
// slice behind a mutex; only one "drain" goroutine-task is ever posted to
// the reactor for a given Serializer at a time, and that drain task keeps
// running until the queue empties.
type Serializer struct {
	reactor *Reactor

	mu       sync.Mutex
	queue    []func()
	draining bool
	closed   bool

	// drainerGoid is the goroutine ID currently running a task drained from
	// this Serializer, or 0 if none. Dispatch uses it to detect the one
	// case post/dispatch differ: a call already happening inside one of
	// this Serializer's own tasks.
	drainerGoid atomic.Int64
}

func newSerializer(r *Reactor) *Serializer {
	return &Serializer{reactor: r}
}

// Post enqueues task for execution on this Serializer's strand. If no
// drain is currently in flight, one is scheduled on the reactor. Posting
// after Close is a silent no-op: a session that has already torn down must
// not have stale callbacks resurrect its state.
func (s *Serializer) Post(task func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, task)
	needsDrain := !s.draining
	if needsDrain {
		s.draining = true
	}
	s.mu.Unlock()

	if needsDrain {
		s.reactor.Post(s.drain)
	}
}

// drain runs queued tasks one at a time until the queue is empty, then
// releases the draining flag. Because the flag release and the emptiness
// check happen under the same lock as Post's append, no task can be
// dropped and no two drains can run concurrently for one Serializer.
func (s *Serializer) drain() {
	s.drainerGoid.Store(goid())
	defer s.drainerGoid.Store(0)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		runTask(task)
	}
}

// Dispatch runs task inline if the calling goroutine is already executing a
// task drained from this Serializer, otherwise it behaves exactly like
// Post. This is the other half of the post/dispatch pair every strand-like
// primitive exposes: call sites that already know statically that they are
// running on their own serializer (most session-internal methods) use it to
// skip an unnecessary trip back through the reactor's task channel.
func (s *Serializer) Dispatch(task func()) {
	if s.drainerGoid.Load() == goid() {
		runTask(task)
		return
	}
	s.Post(task)
}

// goid returns the calling goroutine's runtime ID. Go deliberately exposes
// no public API for this; parsing it out of runtime.Stack's header line is
// the smallest reliable way to get it, and it is only ever used here to
// answer "am I already inside this Serializer's own drain loop".
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	line := buf[:n]
	line = bytes.TrimPrefix(line, []byte("goroutine "))
	if i := bytes.IndexByte(line, ' '); i >= 0 {
		line = line[:i]
	}
	id, _ := strconv.ParseInt(string(line), 10, 64)
	return id
}

// Close marks the Serializer closed; any task posted afterward is
// discarded rather than run. Tasks already queued at the time of the call
// still run to completion — stopping the reactor does not retroactively
// cancel in-flight serialized work, so it is the session's own shutdown
// that decides no further work may start, not the reactor's.
func (s *Serializer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
