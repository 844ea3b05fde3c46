package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/hostloop/go-flow-tasks/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type registryStub struct {
	stats   core.RegistryStats
	runners []core.RunnerStats
}

func (s registryStub) Stats() core.RegistryStats               { return s.stats }
func (s registryStub) RunnerStatsSnapshot() []core.RunnerStats { return s.runners }

func TestSnapshotPoller_CollectsRegistryAndRunnerStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddRegistry("main", registryStub{
		stats: core.RegistryStats{
			Tasks:    3,
			Running:  true,
			Ticks:    120,
			Handoffs: 45,
			Reaped:   7,
		},
		runners: []core.RunnerStats{
			{ID: 1, Name: "terrain", Status: core.TaskRunning, Requesting: true, Handoffs: 12},
			{ID: 2, Name: "saver", Status: core.TaskRunning, Requesting: false, Handoffs: 3},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		tasks := testutil.ToFloat64(poller.registryTasks.WithLabelValues("main"))
		handoffs := testutil.ToFloat64(poller.registryHandoffs.WithLabelValues("main"))
		return tasks == 3 && handoffs == 45
	})

	if got := testutil.ToFloat64(poller.registryRunning.WithLabelValues("main")); got != 1 {
		t.Fatalf("registry running gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.registryReaped.WithLabelValues("main")); got != 7 {
		t.Fatalf("registry reaped gauge = %v, want 7", got)
	}
	if got := testutil.ToFloat64(poller.runnerRequesting.WithLabelValues("main", "terrain")); got != 1 {
		t.Fatalf("runner requesting gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.runnerHandoffs.WithLabelValues("main", "saver")); got != 3 {
		t.Fatalf("runner handoffs gauge = %v, want 3", got)
	}
}

func TestSnapshotPoller_CollectsLiveRegistry(t *testing.T) {
	promReg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(promReg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	taskReg := core.NewRegistry()
	state := core.NewState()
	taskReg.Start(func(tc *core.TaskContext) {
		core.WriteSlot(tc, "done", true)
	})

	deadline := time.Now().Add(2 * time.Second)
	for taskReg.AreAnyRunning() && time.Now().Before(deadline) {
		state.BeginTick()
		taskReg.Step(state)
		time.Sleep(time.Millisecond)
	}

	poller.AddRegistry("live", taskReg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		handoffs := testutil.ToFloat64(poller.registryHandoffs.WithLabelValues("live"))
		reaped := testutil.ToFloat64(poller.registryReaped.WithLabelValues("live"))
		return handoffs == 1 && reaped == 1
	})
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
