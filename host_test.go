package flowtasks_test

import (
	"testing"
	"time"

	flowtasks "github.com/hostloop/go-flow-tasks"
	"github.com/hostloop/go-flow-tasks/core"
)

// tick drives the host until cond holds, failing the test on timeout.
func tick(t *testing.T, host *flowtasks.Host, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		host.Tick()
		if cond() {
			return
		}
		time.Sleep(200 * time.Microsecond)
	}
	t.Fatal("host loop: condition not reached before timeout")
}

// TestHost_TickDrivesTasks tests the public host loop surface
// Given: a host with one flow task doing work across several windows
// When: the host ticks until no runners remain
// Then: the task's result is visible in the state
func TestHost_TickDrivesTasks(t *testing.T) {
	// Arrange
	host := flowtasks.NewHost()
	host.State().SetSlot("total", 0)

	host.StartNamed("accumulator", func(tc *flowtasks.TaskContext) {
		for i := 0; i < 10; i++ {
			tc.WithAccess(func(s *flowtasks.State) {
				s.SetSlot("total", core.SlotOf[int](s, "total")+i)
			})
		}
	})

	// Act
	tick(t, host, func() bool { return !host.AreAnyRunning() })

	// Assert
	if got := core.SlotOf[int](host.State(), "total"); got != 45 {
		t.Errorf("total: got = %d, want = 45", got)
	}
}

// TestHost_PauseResume tests the gate through the host facade
// Given: a host with one pending task and a paused gate
// When: ticks run paused, then the gate resumes
// Then: the task only completes after Resume
func TestHost_PauseResume(t *testing.T) {
	// Arrange
	host := flowtasks.NewHost()
	host.Start(func(tc *flowtasks.TaskContext) {
		core.WriteSlot(tc, "done", true)
	})
	host.Pause()
	time.Sleep(5 * time.Millisecond)

	// Act - Ticks while paused do not service the task
	for i := 0; i < 10; i++ {
		host.Tick()
	}
	if _, ok := host.State().Slot("done"); ok {
		t.Fatal("task serviced while paused")
	}

	host.Resume()
	tick(t, host, func() bool { return !host.AreAnyRunning() })

	// Assert
	if !core.SlotOf[bool](host.State(), "done") {
		t.Error("task did not complete after Resume")
	}
}

// TestHost_StopAll tests forced shutdown through the host facade
// Given: a host with a task parked in an await that never resolves
// When: StopAll runs
// Then: no live runners remain
func TestHost_StopAll(t *testing.T) {
	// Arrange
	host := flowtasks.NewHost()
	host.State().AddMachine("mode", "menu")
	host.Start(func(tc *flowtasks.TaskContext) {
		core.AwaitStateEquals(tc, "mode", "never")
	})

	for i := 0; i < 3; i++ {
		host.Tick()
		time.Sleep(time.Millisecond)
	}

	// Act
	host.StopAll()

	// Assert
	if host.AreAnyRunning() {
		t.Errorf("task count after StopAll: got = %d, want = 0", host.Registry().TaskCount())
	}
}

// TestGlobalHost tests the singleton lifecycle
// Given: an initialized global host
// When: tasks start through StartTask and the host is shut down
// Then: the task runs on the singleton, repeated init is a no-op, and
// access after shutdown panics
func TestGlobalHost(t *testing.T) {
	// Arrange
	flowtasks.InitGlobalHost()
	defer flowtasks.ShutdownGlobalHost()

	host := flowtasks.GetGlobalHost()
	flowtasks.InitGlobalHost() // no-op
	if flowtasks.GetGlobalHost() != host {
		t.Fatal("repeated InitGlobalHost replaced the singleton")
	}

	// Act
	flowtasks.StartTask(func(tc *flowtasks.TaskContext) {
		core.WriteSlot(tc, "ran", true)
	})
	tick(t, host, func() bool { return !host.AreAnyRunning() })

	// Assert
	if !core.SlotOf[bool](host.State(), "ran") {
		t.Error("StartTask task did not run on the global host")
	}

	flowtasks.ShutdownGlobalHost()
	defer func() {
		if recover() == nil {
			t.Error("GetGlobalHost after shutdown: got = no panic, want = panic")
		}
	}()
	flowtasks.GetGlobalHost()
}
