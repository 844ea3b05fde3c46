package core

import (
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTaskStopped is the failure a task body observes when its runner was
// dropped (StopAll) while the task was still running. It surfaces as an
// abort of that task's goroutine, never as a partial mutation of the State.
var ErrTaskStopped = errors.New("flowtasks: task runner dropped while task still running")

// taskAbort wraps a fatal task-local error so the body wrapper can tell
// cooperative aborts apart from genuine panics.
type taskAbort struct {
	err error
}

// TaskRunner owns one flow task: its goroutine, its rendezvous channel
// pair, and the driver side of the handoff protocol.
//
// Per-task state machine: Idle (running independent code) -> Requesting
// (sent requesting-access, blocked on the grant queue) -> Granted (holds
// a StateRef) -> Idle ... -> Finished (body returned). The driver moves a
// runner Requesting->Granted->Idle inside a single ServiceHandoff call,
// blocking the host loop thread for the whole granted window. That
// sequential blocking service is what makes process-wide exclusivity hold
// without any lock on the State.
type TaskRunner struct {
	id   TaskID
	name string

	// Channel pair. requests carries task->driver signals; grants carries
	// the driver->task loan of the current tick's State. Both bounded.
	requests chan taskSignal
	grants   chan *State

	// cancel is closed by drop(); task-side suspension points select on
	// it so a dropped runner aborts its task at the next natural pause.
	cancel     chan struct{}
	cancelOnce sync.Once

	// done is closed when the task goroutine exits, however it exits.
	// Completion detection works even for bodies that never touch the
	// State again and send nothing.
	done chan struct{}

	handoffs  atomic.Int64
	startedAt time.Time

	logger Logger
}

// newTaskRunner spawns the task goroutine and returns the driver-side
// handle. The task starts immediately.
func newTaskRunner(id TaskID, name string, fn TaskFunc, logger Logger, panicHandler PanicHandler, metrics Metrics) *TaskRunner {
	r := &TaskRunner{
		id:        id,
		name:      name,
		requests:  make(chan taskSignal, channelCapacity),
		grants:    make(chan *State, channelCapacity),
		cancel:    make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: time.Now(),
		logger:    logger,
	}

	tc := &TaskContext{
		id:       id,
		requests: r.requests,
		grants:   r.grants,
		cancel:   r.cancel,
	}

	go func() {
		defer close(r.done)
		defer func() {
			if rec := recover(); rec != nil {
				if abort, ok := rec.(taskAbort); ok {
					logger.Debug("flow task aborted", F("task", id), F("reason", abort.err))
				} else {
					panicHandler.HandlePanic(id, rec, debug.Stack())
					metrics.RecordTaskPanic(id, rec)
				}
			}
			// Closing the request queue is the authoritative completion
			// signal: the driver observes it even when the finished
			// message below was never sent (panic, abort).
			close(r.requests)
		}()

		fn(tc)

		// Best effort; the close above covers the full case.
		select {
		case r.requests <- signalFinished:
		default:
		}
	}()

	return r
}

// ID returns the runner's task id.
func (r *TaskRunner) ID() TaskID {
	return r.id
}

// Name returns the task's display name.
func (r *TaskRunner) Name() string {
	return r.name
}

// IsFinished reports whether the task goroutine has exited. This is
// independent of channel traffic, mirroring a thread-join check.
func (r *TaskRunner) IsFinished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// HasPendingRequest reports whether a request is waiting without
// consuming it. The driver uses this for stats only; servicing always
// re-checks.
func (r *TaskRunner) HasPendingRequest() bool {
	return len(r.requests) > 0
}

// Handoffs returns how many granted windows this runner has completed.
func (r *TaskRunner) Handoffs() int64 {
	return r.handoffs.Load()
}

// Stats returns an observability snapshot for this runner.
func (r *TaskRunner) Stats() RunnerStats {
	status := TaskRunning
	if r.IsFinished() {
		status = TaskFinished
	}
	return RunnerStats{
		ID:         r.id,
		Name:       r.name,
		Status:     status,
		Requesting: r.HasPendingRequest(),
		Handoffs:   r.handoffs.Load(),
		StartedAt:  r.startedAt,
	}
}

// serviceResult reports what one ServiceHandoff call did.
type serviceResult struct {
	granted    bool
	grantedAt  time.Time
	releasedAt time.Time
	finished   bool
}

// ServiceHandoff performs one non-blocking check-and-service of this
// runner's pending handoff, lending state for the duration of the
// granted window if one begins.
//
// If a requesting-access signal is pending, the call (a) hands the
// current tick's State over the grant queue and (b) blocks the calling
// (host loop) thread until the matching release-ack arrives. A request
// queue that closes at any point means the task terminated; the runner is
// reclassified as finished instead of hanging.
func (r *TaskRunner) ServiceHandoff(state *State) serviceResult {
	var res serviceResult

	var sig taskSignal
	var ok bool
	select {
	case sig, ok = <-r.requests:
		if !ok {
			res.finished = true
			return res
		}
	default:
		res.finished = r.IsFinished()
		return res
	}

	switch sig {
	case signalRequesting:
		res.grantedAt = time.Now()
		r.grants <- state
		for {
			next, open := <-r.requests
			if !open {
				// Task terminated mid-window. Its release defer either
				// already ran or never will; either way the window is over.
				res.granted = true
				res.releasedAt = time.Now()
				res.finished = true
				return res
			}
			if next == signalRelease {
				res.granted = true
				res.releasedAt = time.Now()
				res.finished = r.IsFinished()
				r.handoffs.Add(1)
				return res
			}
			r.logger.Warn("unexpected signal during granted window",
				F("task", r.id), F("signal", next))
		}

	case signalFinished:
		res.finished = true
		return res

	default:
		// A release-ack with no outstanding grant indicates a protocol
		// bug on the task side; drop it rather than wedging the driver.
		r.logger.Warn("unsolicited signal outside granted window",
			F("task", r.id), F("signal", sig))
		res.finished = r.IsFinished()
		return res
	}
}

// drop forcibly abandons the runner. The task goroutine is not preempted;
// it observes the closed cancel channel at its next suspension point
// (request send, grant receive, await backoff) and aborts with
// ErrTaskStopped. Threads between suspension points run until they reach
// one. Safe to call more than once.
func (r *TaskRunner) drop() {
	// Only the cancel channel closes here. Closing the grant queue would
	// race a concurrent Step that is about to send on it; the task-side
	// suspension points all select on cancel, so this alone wakes a task
	// blocked on its grant queue.
	r.cancelOnce.Do(func() {
		close(r.cancel)
	})
}
