package flowtasks

import (
	"sync"

	"github.com/hostloop/go-flow-tasks/core"
)

// Host couples one state object with one registry: the pairing every host
// loop needs. Tick is the deterministic per-iteration entry point; the
// host loop owns the State exclusively between Tick calls.
type Host struct {
	state    *core.State
	registry *core.Registry
}

// NewHost creates a Host with an empty State and default Registry config.
func NewHost() *Host {
	return NewHostWithConfig(core.DefaultRegistryConfig())
}

// NewHostWithConfig creates a Host with the given registry configuration.
func NewHostWithConfig(cfg *core.RegistryConfig) *Host {
	return &Host{
		state:    core.NewState(),
		registry: core.NewRegistryWithConfig(cfg),
	}
}

// State returns the shared state object. Only touch it from the host loop
// thread, between Tick calls.
func (h *Host) State() *core.State {
	return h.state
}

// Registry returns the task registry.
func (h *Host) Registry() *core.Registry {
	return h.registry
}

// Tick runs one host-loop iteration of the mechanism: the tick-edge state
// update (commit staged transitions, rotate event buffers, drain asset
// completions) followed by the driver step. Call exactly once per loop
// iteration, always from the same thread.
//
// Tick blocks for the combined duration of every granted window it
// services this iteration.
func (h *Host) Tick() {
	h.state.BeginTick()
	h.registry.Step(h.state)
}

// Start spawns fn as a new flow task. See Registry.Start.
func (h *Host) Start(fn core.TaskFunc) core.TaskID {
	return h.registry.Start(fn)
}

// StartNamed spawns fn with a display name. See Registry.StartNamed.
func (h *Host) StartNamed(name string, fn core.TaskFunc) core.TaskID {
	return h.registry.StartNamed(name, fn)
}

// StopAll forcibly drops every runner. See Registry.StopAll.
func (h *Host) StopAll() {
	h.registry.StopAll()
}

// Pause flips the scheduling gate off. See Registry.Pause.
func (h *Host) Pause() {
	h.registry.Pause()
}

// Resume flips the scheduling gate back on. See Registry.Resume.
func (h *Host) Resume() {
	h.registry.Resume()
}

// AreAnyRunning reports whether any live runners remain.
func (h *Host) AreAnyRunning() bool {
	return h.registry.AreAnyRunning()
}

// =============================================================================
// Global Host Helper (Singleton)
// =============================================================================

var (
	globalHost *Host
	globalMu   sync.Mutex
)

// InitGlobalHost initializes the global host. Repeated calls are no-ops.
func InitGlobalHost() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalHost != nil {
		return // Already initialized
	}

	globalHost = NewHost()
}

// GetGlobalHost returns the global host instance.
// It panics if InitGlobalHost has not been called.
func GetGlobalHost() *Host {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalHost == nil {
		panic("GlobalHost not initialized. Call InitGlobalHost() first.")
	}
	return globalHost
}

// ShutdownGlobalHost drops all tasks on the global host and discards it.
func ShutdownGlobalHost() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalHost != nil {
		globalHost.StopAll()
		globalHost = nil
	}
}

// StartTask spawns fn on the global host.
// This is the recommended way to start a task when a single host loop owns
// the whole application.
func StartTask(fn core.TaskFunc) core.TaskID {
	return GetGlobalHost().Start(fn)
}
