package core

import (
	"fmt"
	"time"
)

// awaitPollInterval is how long an await loop sleeps between version
// probes while nothing has changed. Keeps an idle await from issuing
// handoffs at all, while still reacting within a fraction of a tick.
const awaitPollInterval = 100 * time.Microsecond

// TaskContext is the API surface handed to a flow task body. Every
// operation that touches the State performs one or more handoffs: the
// task blocks until the driver lends it the state object, does a bounded
// amount of work, and returns it before the host loop continues.
//
// A TaskContext is bound to its task's goroutine. Calling its methods
// from any other goroutine breaks the protocol.
type TaskContext struct {
	id       TaskID
	requests chan<- taskSignal
	grants   <-chan *State

	// cancel is the cooperative stop token: closed when the owning runner
	// is dropped. Checked at every suspension point.
	cancel <-chan struct{}

	// lastState remembers the state object from the most recent grant so
	// await loops can watch its version counter between handoffs. The
	// host's state object is stable across ticks.
	lastState *State
}

// ID returns the id of the task this context belongs to.
func (tc *TaskContext) ID() TaskID {
	return tc.id
}

// abort terminates the task goroutine with a fatal, task-local error.
// The runner wrapper recovers it; nothing propagates to the host loop.
func (tc *TaskContext) abort(err error) {
	panic(taskAbort{err: err})
}

// acquire sends requesting-access and blocks until the driver grants the
// State. Idle -> Requesting -> Granted from the task's point of view.
func (tc *TaskContext) acquire() *State {
	select {
	case tc.requests <- signalRequesting:
	case <-tc.cancel:
		tc.abort(ErrTaskStopped)
	}

	select {
	case st, ok := <-tc.grants:
		if !ok {
			tc.abort(ErrTaskStopped)
		}
		tc.lastState = st
		return st
	case <-tc.cancel:
		tc.abort(ErrTaskStopped)
	}
	panic("unreachable")
}

// release sends the release-ack ending the current granted window.
func (tc *TaskContext) release() {
	select {
	case tc.requests <- signalRelease:
	case <-tc.cancel:
		tc.abort(ErrTaskStopped)
	}
}

// =============================================================================
// Acquire-and-use patterns
// =============================================================================

// Borrow performs one handoff and returns the live access handle for
// manual scoped use across multiple statements. Defer Release right away:
//
//	ref := tc.Borrow()
//	defer ref.Release()
//	ref.State().SetSlot("progress", 0.5)
//
// The host loop is blocked until Release.
func (tc *TaskContext) Borrow() *StateRef {
	st := tc.acquire()
	return &StateRef{state: st, tc: tc}
}

// WithAccess performs one handoff, runs fn against the State, and
// releases. The release happens on every exit path, including a panic
// inside fn. Single critical section; the host loop is blocked while fn
// runs, so keep it short.
func (tc *TaskContext) WithAccess(fn func(s *State)) {
	ref := tc.Borrow()
	defer ref.Release()
	fn(ref.State())
}

// WithAccessResult is WithAccess returning fn's result.
func WithAccessResult[R any](tc *TaskContext, fn func(s *State) R) R {
	ref := tc.Borrow()
	defer ref.Release()
	return fn(ref.State())
}

// =============================================================================
// Typed sub-component access
// =============================================================================

// ReadSlot copies the named slot's value out of the State. One handoff.
//
// A slot that was never written, or that holds another type, aborts the
// task with a descriptive panic.
func ReadSlot[T any](tc *TaskContext, key string) T {
	return WithAccessResult(tc, func(s *State) T {
		return SlotOf[T](s, key)
	})
}

// WriteSlot inserts or overwrites the named slot. One handoff.
func WriteSlot[T any](tc *TaskContext, key string, value T) {
	tc.WithAccess(func(s *State) {
		s.SetSlot(key, value)
	})
}

// ScheduleTransition stages a value for the named scheduled state
// machine. The transition commits at the start of the host loop's next
// tick, not now: a read within this or any later window before that tick
// edge still sees the old value.
func ScheduleTransition[S any](tc *TaskContext, machine string, next S) {
	tc.WithAccess(func(s *State) {
		s.Machine(machine).Stage(next)
		s.bumpVersion()
	})
}

// Publish appends an event to the named transient queue. Visibility is
// bounded: the event survives the current and the next tick, then
// expires. Consumers that are not serviced in that window miss it.
func Publish[E any](tc *TaskContext, queue string, event E) {
	tc.WithAccess(func(s *State) {
		s.Events(queue).Publish(event)
		s.bumpVersion()
	})
}

// =============================================================================
// Condition-polling await primitives
// =============================================================================

// AwaitCond blocks the task until cond yields a value: acquire access,
// evaluate, release, repeat. Re-acquisition is gated on the State's
// version counter, so a probe that found nothing does not issue another
// handoff until something has actually changed.
//
// There is no timeout. A predicate that never becomes true blocks
// forever, throttled only by how often the driver services this task; a
// paused scheduling gate stalls the loop indefinitely.
func AwaitCond[R any](tc *TaskContext, cond func(s *State) (R, bool)) R {
	for {
		var ret R
		var ok bool
		var seen uint64
		tc.WithAccess(func(s *State) {
			seen = s.Version()
			ret, ok = cond(s)
		})
		if ok {
			return ret
		}
		tc.awaitChange(seen)
	}
}

// awaitChange sleeps until the state version moves past seen, honoring
// cancellation. Runs outside any granted window.
func (tc *TaskContext) awaitChange(seen uint64) {
	for tc.lastState.Version() == seen {
		select {
		case <-tc.cancel:
			tc.abort(ErrTaskStopped)
		default:
		}
		time.Sleep(awaitPollInterval)
	}
}

// AwaitEvent blocks until an event on the named queue satisfies pred,
// and returns it. Only events of payload type E are considered.
//
// Each probe reads a snapshot of the queue's retained events under a
// granted window. An event published and expired between two windows
// (for example while the gate is paused) is never seen.
func AwaitEvent[E any](tc *TaskContext, queue string, pred func(E) bool) E {
	var cursor EventCursor
	var buf []Event
	return AwaitCond(tc, func(s *State) (E, bool) {
		buf = s.Events(queue).Read(&cursor, buf[:0])
		for _, evt := range buf {
			if payload, ok := evt.Payload.(E); ok && pred(payload) {
				return payload, true
			}
		}
		var zero E
		return zero, false
	})
}

// AwaitStateEquals blocks until the named scheduled state machine's
// committed value equals target.
func AwaitStateEquals[S comparable](tc *TaskContext, machine string, target S) {
	AwaitCond(tc, func(s *State) (struct{}, bool) {
		cur, ok := s.Machine(machine).Current().(S)
		return struct{}{}, ok && cur == target
	})
}

// =============================================================================
// Asset loading
// =============================================================================

// AwaitBatchLoaded issues a batch load for path on the attached
// AssetServer, waits for its completion event, and reads back the loaded
// handle set. Three handoffs: request, the matching await probe, and the
// final read-back.
//
// A batch that failed after exhausting its retries aborts the task.
func (tc *TaskContext) AwaitBatchLoaded(path string) []AssetHandle {
	var batch BatchID
	var queue string
	tc.WithAccess(func(s *State) {
		srv := s.Assets()
		queue = srv.EventQueueName()
		batch = srv.Load(path)
	})

	evt := AwaitEvent(tc, queue, func(e BatchLoaded) bool {
		return e.Batch == batch
	})
	if evt.Err != nil {
		tc.abort(fmt.Errorf("flowtasks: asset batch %q failed to load: %w", path, evt.Err))
	}

	return WithAccessResult(tc, func(s *State) []AssetHandle {
		handles, ok := s.Assets().Handles(batch)
		if !ok {
			panic(fmt.Sprintf("flowtasks: asset batch %d completed but has no catalog entry", batch))
		}
		return handles
	})
}
