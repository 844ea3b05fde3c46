package core

import (
	"fmt"
	"sync/atomic"
)

// TaskID uniquely identifies a flow task for the lifetime of the process.
// IDs are monotonically increasing and never reused.
type TaskID uint64

// String returns a human readable form, e.g. "task-42".
func (id TaskID) String() string {
	return fmt.Sprintf("task-%d", uint64(id))
}

var nextTaskID atomic.Uint64

// GenerateTaskID returns the next process-wide TaskID.
func GenerateTaskID() TaskID {
	return TaskID(nextTaskID.Add(1))
}

// TaskFunc is the body of a flow task (Closure).
//
// The body runs on its own goroutine, genuinely in parallel with the host
// loop, except while it holds state access through the TaskContext. All
// interaction with the shared State must go through tc; touching the State
// outside a granted window is a data race.
type TaskFunc func(tc *TaskContext)

// TaskStatus describes a task runner's lifecycle state as seen by the driver.
type TaskStatus int

const (
	// TaskRunning: the task goroutine is alive. It may be executing
	// independent code, waiting for a grant, or inside a granted window.
	TaskRunning TaskStatus = iota

	// TaskFinished: the task body returned (or panicked) and the runner
	// will be purged on the next driver step.
	TaskFinished
)

func (s TaskStatus) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// =============================================================================
// Rendezvous channel pair message kinds
// =============================================================================

// taskSignal is a message on the request queue (task -> driver).
type taskSignal int

const (
	// signalRequesting: the task wants the State and is now blocked on
	// its grant queue.
	signalRequesting taskSignal = iota

	// signalRelease: the task's StateRef was released; the driver's
	// blocking wait for the granted window to end returns.
	signalRelease

	// signalFinished: the task body returned and will send nothing more.
	// The wrapper also closes the request queue, so the driver detects
	// completion even if this message is never observed.
	signalFinished
)

func (s taskSignal) String() string {
	switch s {
	case signalRequesting:
		return "requesting-access"
	case signalRelease:
		return "release-ack"
	case signalFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// channelCapacity bounds both queues of the rendezvous pair. Small on
// purpose: the protocol is strictly request/grant/release, so anything
// beyond a short burst of buffered signals indicates a protocol bug
// rather than legitimate backlog.
const channelCapacity = 5
