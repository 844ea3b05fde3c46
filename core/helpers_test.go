package core

import (
	"sync"
	"testing"
	"time"
)

// driveTimeout bounds every drive loop; a test that has not converged by
// then is wedged, not slow.
const driveTimeout = 5 * time.Second

// newTestRegistry returns a quiet registry and a fresh state for it.
func newTestRegistry() (*Registry, *State) {
	return NewRegistryWithConfig(DefaultRegistryConfig()), NewState()
}

// drive plays the host loop: BeginTick + Step until cond holds, failing
// the test on timeout. The calling goroutine is the host loop thread.
func drive(t *testing.T, reg *Registry, state *State, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(driveTimeout)
	for time.Now().Before(deadline) {
		state.BeginTick()
		reg.Step(state)
		if cond() {
			return
		}
		time.Sleep(200 * time.Microsecond)
	}
	t.Fatal("drive: condition not reached before timeout")
}

// driveUntilReaped drives until every runner has finished and been purged.
func driveUntilReaped(t *testing.T, reg *Registry, state *State) {
	t.Helper()
	drive(t, reg, state, func() bool { return !reg.AreAnyRunning() })
}

// recordingPanicHandler captures panic notifications for assertions.
type recordingPanicHandler struct {
	mu     sync.Mutex
	panics []any
}

func (h *recordingPanicHandler) HandlePanic(id TaskID, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.panics = append(h.panics, panicInfo)
}

func (h *recordingPanicHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.panics)
}

// recordingMetrics counts metric callbacks for assertions.
type recordingMetrics struct {
	mu       sync.Mutex
	handoffs int
	windows  int
	panics   int
	finished int
	counts   []int
}

func (m *recordingMetrics) RecordHandoff(id TaskID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handoffs++
}

func (m *recordingMetrics) RecordGrantedWindow(id TaskID, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows++
}

func (m *recordingMetrics) RecordTaskPanic(id TaskID, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

func (m *recordingMetrics) RecordTaskFinished(id TaskID, lifetime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished++
}

func (m *recordingMetrics) RecordTaskCount(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = append(m.counts, count)
}

func (m *recordingMetrics) snapshot() (handoffs, windows, panics, finished int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handoffs, m.windows, m.panics, m.finished
}
