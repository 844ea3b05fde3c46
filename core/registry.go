package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// Registry tracks all live task runners and implements the per-tick
// driver step the host loop calls.
//
// Threading model: Start, StopAll, Pause, Resume and the read accessors
// may be called from any goroutine. Step must only ever be called from
// the single host loop thread, exactly once per tick, with the same State
// the host owns between ticks.
type Registry struct {
	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics

	// gate is the process-wide scheduling gate. Step is a no-op while
	// paused; outstanding requests stay queued, they are not cancelled.
	gate atomic.Bool

	mu      sync.Mutex
	runners []*TaskRunner // insertion order; Step services in this order
	byID    map[TaskID]*TaskRunner

	history handoffHistory

	ticks    atomic.Int64
	handoffs atomic.Int64
	reaped   atomic.Int64
}

// NewRegistry creates a Registry with default configuration.
func NewRegistry() *Registry {
	return NewRegistryWithConfig(DefaultRegistryConfig())
}

// NewRegistryWithConfig creates a Registry with the given configuration.
func NewRegistryWithConfig(cfg *RegistryConfig) *Registry {
	if cfg == nil {
		cfg = DefaultRegistryConfig()
	}

	reg := &Registry{
		logger:       cfg.Logger,
		panicHandler: cfg.PanicHandler,
		metrics:      cfg.Metrics,
		byID:         make(map[TaskID]*TaskRunner),
		history:      newHandoffHistory(cfg.HistoryCapacity),
	}

	if reg.logger == nil {
		reg.logger = &NoOpLogger{}
	}
	if reg.panicHandler == nil {
		reg.panicHandler = &DefaultPanicHandler{}
	}
	if reg.metrics == nil {
		reg.metrics = &NilMetrics{}
	}

	return reg
}

// Start spawns fn as a new flow task, registers its runner, and flips the
// scheduling gate to running. The task begins executing immediately; its
// first handoff is serviced on the next driver step.
func (reg *Registry) Start(fn TaskFunc) TaskID {
	return reg.StartNamed("", fn)
}

// StartNamed is Start with a display name for logs, metrics and history.
func (reg *Registry) StartNamed(name string, fn TaskFunc) TaskID {
	id := GenerateTaskID()
	if name == "" {
		name = id.String()
	}

	runner := newTaskRunner(id, name, fn, reg.logger, reg.panicHandler, reg.metrics)

	reg.mu.Lock()
	reg.runners = append(reg.runners, runner)
	reg.byID[id] = runner
	reg.mu.Unlock()

	reg.gate.Store(true)
	reg.logger.Info("flow task started", F("task", id), F("name", name))
	return id
}

// Pause flips the scheduling gate off. Subsequent Steps do nothing until
// Resume or Start. In-flight requests are not cancelled: a task already
// in Requesting stays blocked, and transient events that expire while the
// gate is paused are permanently missed by waiting tasks.
func (reg *Registry) Pause() {
	reg.gate.Store(false)
	reg.logger.Debug("scheduling gate paused")
}

// Resume flips the scheduling gate back on.
func (reg *Registry) Resume() {
	reg.gate.Store(true)
	reg.logger.Debug("scheduling gate resumed")
}

// IsRunning reports the scheduling gate.
func (reg *Registry) IsRunning() bool {
	return reg.gate.Load()
}

// TaskCount returns the number of live (not yet reaped) runners.
func (reg *Registry) TaskCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.runners)
}

// AreAnyRunning reports whether any live runners remain. Finished tasks
// stop counting once the next driver step reaps them.
func (reg *Registry) AreAnyRunning() bool {
	return reg.TaskCount() > 0
}

// Get returns the runner for id, or false if the task has finished and
// been reaped (or was stopped).
func (reg *Registry) Get(id TaskID) (*TaskRunner, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.byID[id]
	return r, ok
}

// TaskIDs returns the ids of all live runners in insertion order.
func (reg *Registry) TaskIDs() []TaskID {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	ids := make([]TaskID, 0, len(reg.runners))
	for _, r := range reg.runners {
		ids = append(ids, r.id)
	}
	return ids
}

// StopAll forcibly drops every runner. Task goroutines are not preempted:
// each aborts with ErrTaskStopped at its next suspension point. Tasks
// between suspension points run until they reach one. No partially
// applied State mutation can result, because a task inside a granted
// window still completes that window's release before it can observe the
// drop.
func (reg *Registry) StopAll() {
	reg.mu.Lock()
	dropped := reg.runners
	reg.runners = nil
	reg.byID = make(map[TaskID]*TaskRunner)
	reg.mu.Unlock()

	for _, r := range dropped {
		r.drop()
		reg.logger.Info("flow task dropped", F("task", r.id), F("name", r.name))
	}
}

// Step is the per-tick driver entry point. For each registered runner, in
// insertion order, it performs one non-blocking check-and-service of that
// runner's handoff, blocking for the full duration of any granted window
// before moving on. Afterwards it purges finished runners.
//
// The host loop must call State.BeginTick before Step and must not touch
// state concurrently while Step runs.
func (reg *Registry) Step(state *State) {
	if !reg.gate.Load() {
		return
	}
	reg.ticks.Add(1)

	reg.mu.Lock()
	snapshot := make([]*TaskRunner, len(reg.runners))
	copy(snapshot, reg.runners)
	reg.mu.Unlock()

	finished := make(map[TaskID]bool)
	for _, r := range snapshot {
		res := r.ServiceHandoff(state)
		if res.granted {
			duration := res.releasedAt.Sub(res.grantedAt)
			reg.handoffs.Add(1)
			reg.metrics.RecordHandoff(r.id)
			reg.metrics.RecordGrantedWindow(r.id, duration)
			reg.history.Add(HandoffRecord{
				TaskID:     r.id,
				Name:       r.name,
				Tick:       state.Tick(),
				GrantedAt:  res.grantedAt,
				ReleasedAt: res.releasedAt,
				Duration:   duration,
			})
		}
		if res.finished {
			finished[r.id] = true
		}
	}

	reg.purge(finished)
}

// purge removes finished runners from the registry.
func (reg *Registry) purge(finished map[TaskID]bool) {
	now := time.Now()

	reg.mu.Lock()
	live := reg.runners[:0]
	for _, r := range reg.runners {
		if finished[r.id] || r.IsFinished() {
			delete(reg.byID, r.id)
			reg.reaped.Add(1)
			reg.metrics.RecordTaskFinished(r.id, now.Sub(r.startedAt))
			reg.logger.Info("flow task finished", F("task", r.id), F("name", r.name))
			continue
		}
		live = append(live, r)
	}
	reg.runners = live
	count := len(reg.runners)
	reg.mu.Unlock()

	reg.metrics.RecordTaskCount(count)
}

// RecentHandoffs returns up to limit completed granted windows, newest
// first. limit <= 0 returns everything retained.
func (reg *Registry) RecentHandoffs(limit int) []HandoffRecord {
	return reg.history.Recent(limit)
}

// LastHandoff returns the most recent completed granted window.
func (reg *Registry) LastHandoff() (HandoffRecord, bool) {
	return reg.history.Last()
}

// Stats returns an observability snapshot for this registry.
func (reg *Registry) Stats() RegistryStats {
	return RegistryStats{
		Tasks:    reg.TaskCount(),
		Running:  reg.gate.Load(),
		Ticks:    reg.ticks.Load(),
		Handoffs: reg.handoffs.Load(),
		Reaped:   reg.reaped.Load(),
	}
}

// RunnerStatsSnapshot returns stats for all live runners in insertion order.
func (reg *Registry) RunnerStatsSnapshot() []RunnerStats {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]RunnerStats, 0, len(reg.runners))
	for _, r := range reg.runners {
		out = append(out, r.Stats())
	}
	return out
}
