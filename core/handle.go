package core

// StateRef is the access handle for one granted window: a scoped,
// exclusive borrow of the State. It is constructed only by a successful
// handoff (TaskContext.Borrow or the WithAccess helpers) and is the sole
// way a granted window ends.
//
// While a StateRef is live, the host loop thread is blocked inside the
// driver step, so the whole application stalls. Keep windows short.
//
// A StateRef belongs to the task goroutine that borrowed it. It must not
// be shared with other goroutines, stored past Release, or released
// twice; State() after Release panics, and a second Release is a no-op so
// the release-ack is sent exactly once.
type StateRef struct {
	state    *State
	tc       *TaskContext
	released bool
}

// State returns the borrowed state object.
//
// Panics if the handle was already released. Use-after-release would
// otherwise be an unsynchronized access racing the host loop.
func (h *StateRef) State() *State {
	if h.released {
		panic("flowtasks: StateRef used after Release")
	}
	return h.state
}

// Released reports whether the granted window has ended.
func (h *StateRef) Released() bool {
	return h.released
}

// Release ends the granted window, sending the release-ack that unblocks
// the host loop. Exactly one ack is sent no matter how many times Release
// is called; callers should defer it immediately after Borrow so every
// exit path, including panics, returns the State.
func (h *StateRef) Release() {
	if h.released {
		return
	}
	h.released = true
	h.state = nil
	h.tc.release()
}
