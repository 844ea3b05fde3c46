package core

import (
	"fmt"
	"sync/atomic"
)

// State is the single mutable structure shared between the host loop and
// flow tasks. The host loop owns it by default; a task only ever touches
// it through a granted window (see TaskContext). No lock guards the
// struct itself: exclusivity is a property of the driver-step protocol.
//
// The version counter is the one exception. It is atomic so that await
// loops can cheaply check "did anything change since my last probe"
// without issuing a handoff.
type State struct {
	slots    map[string]any
	events   map[string]*EventQueue
	machines map[string]*Machine
	assets   *AssetServer

	tick    uint64
	version atomic.Uint64
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		slots:    make(map[string]any),
		events:   make(map[string]*EventQueue),
		machines: make(map[string]*Machine),
	}
}

// BeginTick is the host loop's tick-edge call. It must run exactly once
// per tick, before the driver Step, while no task holds access.
//
// In order:
//  1. Staged machine transitions are committed (ScheduleTransition from
//     the previous tick becomes visible now, not earlier).
//  2. Event buffers rotate: events published two ticks ago expire.
//  3. Finished asset batches are drained into the catalog and announced
//     on the asset event queue.
//
// Rotation happens regardless of the scheduling gate. A task that is not
// being serviced while events rotate past it simply misses them; that
// hazard is part of the contract, not something BeginTick compensates for.
func (s *State) BeginTick() {
	s.tick++
	for _, m := range s.machines {
		m.apply()
	}
	for _, q := range s.events {
		q.rotate()
	}
	if s.assets != nil {
		s.assets.drainInto(s)
	}
	s.bumpVersion()
}

// Tick returns the number of BeginTick calls so far.
func (s *State) Tick() uint64 {
	return s.tick
}

// Version returns the current change counter. Safe to call from any
// goroutine; everything else on State requires exclusive access.
func (s *State) Version() uint64 {
	return s.version.Load()
}

func (s *State) bumpVersion() {
	s.version.Add(1)
}

// =============================================================================
// Slots: named, typed sub-components
// =============================================================================

// SetSlot inserts or overwrites the named slot.
func (s *State) SetSlot(key string, value any) {
	s.slots[key] = value
	s.bumpVersion()
}

// Slot returns the named slot's value, or false if it was never set.
func (s *State) Slot(key string) (any, bool) {
	v, ok := s.slots[key]
	return v, ok
}

// RemoveSlot deletes the named slot. Removing an absent slot is a no-op.
func (s *State) RemoveSlot(key string) {
	delete(s.slots, key)
	s.bumpVersion()
}

// SlotOf reads the named slot as type T.
//
// Requesting a slot that was never set, or one holding a different type,
// is a programmer error and panics with a descriptive message. Inside a
// task this aborts the task's goroutine; it never corrupts the State.
func SlotOf[T any](s *State, key string) T {
	v, ok := s.slots[key]
	if !ok {
		panic(fmt.Sprintf("flowtasks: slot %q is not present in the state object", key))
	}
	typed, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("flowtasks: slot %q holds %T, not %T", key, v, typed))
	}
	return typed
}

// =============================================================================
// Event queues and state machines: registration
// =============================================================================

// AddEventQueue registers a named transient event queue. Registering a
// name twice keeps the existing queue.
func (s *State) AddEventQueue(name string) *EventQueue {
	if q, ok := s.events[name]; ok {
		return q
	}
	q := newEventQueue(name)
	s.events[name] = q
	return q
}

// Events returns the named event queue.
//
// Panics if the queue was never registered; a task hitting this aborts
// rather than silently dropping or inventing messages.
func (s *State) Events(name string) *EventQueue {
	q, ok := s.events[name]
	if !ok {
		panic(fmt.Sprintf("flowtasks: event queue %q is not registered in the state object", name))
	}
	return q
}

// PublishEvent appends a message to the named queue and bumps the
// version counter so gated await loops re-probe. Host-loop convenience;
// tasks publish through their TaskContext instead.
func (s *State) PublishEvent(name string, payload any) uint64 {
	id := s.Events(name).Publish(payload)
	s.bumpVersion()
	return id
}

// AddMachine registers a named scheduled state machine with its initial
// value. Registering a name twice keeps the existing machine.
func (s *State) AddMachine(name string, initial any) *Machine {
	if m, ok := s.machines[name]; ok {
		return m
	}
	m := &Machine{name: name, current: initial}
	s.machines[name] = m
	return m
}

// Machine returns the named scheduled state machine.
//
// Panics if the machine was never registered.
func (s *State) Machine(name string) *Machine {
	m, ok := s.machines[name]
	if !ok {
		panic(fmt.Sprintf("flowtasks: state machine %q is not registered in the state object", name))
	}
	return m
}

// =============================================================================
// Asset server attachment
// =============================================================================

// AttachAssets wires an AssetServer into this State. Batch completions
// are drained at each BeginTick and published on srv.EventQueueName().
func (s *State) AttachAssets(srv *AssetServer) {
	s.assets = srv
	s.AddEventQueue(srv.EventQueueName())
}

// Assets returns the attached AssetServer.
//
// Panics if none was attached; asset operations without an AssetServer
// are a configuration error.
func (s *State) Assets() *AssetServer {
	if s.assets == nil {
		panic("flowtasks: no asset server is attached to the state object")
	}
	return s.assets
}
