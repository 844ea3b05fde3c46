package core

import "fmt"

// Machine is a scheduled state machine slot: a current value plus an
// optionally staged next value. Staging is immediate; commit happens at
// the host loop's next tick edge (State.BeginTick), never earlier. A task
// that stages a transition must not expect to read it back within the
// same granted window, nor within any window before the next tick.
type Machine struct {
	name    string
	current any
	next    any
	staged  bool
}

// Name returns the machine's registration name.
func (m *Machine) Name() string {
	return m.name
}

// Current returns the committed value.
func (m *Machine) Current() any {
	return m.current
}

// Stage records the value to commit at the next tick edge. Staging twice
// in one tick keeps the latest value.
func (m *Machine) Stage(next any) {
	m.next = next
	m.staged = true
}

// Staged reports whether a transition is pending.
func (m *Machine) Staged() bool {
	return m.staged
}

// apply commits a staged transition. Called by State.BeginTick.
func (m *Machine) apply() {
	if !m.staged {
		return
	}
	m.current = m.next
	m.next = nil
	m.staged = false
}

// MachineValue reads the named machine's committed value as type S.
//
// Panics if the machine is not registered or holds a different type.
func MachineValue[S any](s *State, name string) S {
	v := s.Machine(name).Current()
	typed, ok := v.(S)
	if !ok {
		panic(fmt.Sprintf("flowtasks: state machine %q holds %T, not %T", name, v, typed))
	}
	return typed
}
