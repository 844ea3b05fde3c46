// Package flowtasks lets background flow tasks borrow a host loop's shared
// state through a synchronized, mutually-exclusive handoff.
//
// A flow task is an ordinary function running on its own goroutine. It
// computes freely in parallel with the host loop, and whenever it needs
// the shared state object it requests a brief exclusive window: the host
// loop's driver step lends the state, blocks until the task releases it,
// then moves on. No lock guards the state; exclusivity falls out of the
// strictly sequential, blocking driver protocol.
//
// # Quick Start
//
// Create a host (state object + task registry) and drive it from your loop:
//
//	host := flowtasks.NewHost()
//	host.Start(func(tc *flowtasks.TaskContext) {
//		result := expensiveComputation() // runs off the host loop
//		tc.WithAccess(func(s *flowtasks.State) {
//			s.SetSlot("result", result) // brief exclusive window
//		})
//	})
//
//	for running {
//		host.Tick() // once per frame / loop iteration
//		// ... rest of the host loop, sole owner of host.State() here
//	}
//
// # Key Concepts
//
// TaskContext: the API surface a task body receives. WithAccess and Borrow
// give scoped exclusive access; ReadSlot, WriteSlot, ScheduleTransition and
// Publish are one-handoff conveniences; AwaitCond, AwaitEvent and
// AwaitStateEquals block the task until shared state satisfies a predicate.
//
// StateRef: the access handle for one granted window. Dropping it (Release,
// or the deferred release inside WithAccess) is the only way a window ends,
// and the release signal is sent exactly once on every exit path.
//
// Registry: tracks live task runners and implements the per-tick driver
// step. Start, StopAll, Pause and Resume control the population and the
// scheduling gate.
//
// # Blocking Warning
//
// A granted window blocks the host loop thread for its full duration. A
// slow closure inside WithAccess stalls every frame of the host
// application, so tasks must keep each window short and do heavy work
// outside, between handoffs.
//
// # Example
//
//	import (
//		flowtasks "github.com/hostloop/go-flow-tasks"
//		"github.com/hostloop/go-flow-tasks/core"
//	)
//
//	func main() {
//		host := flowtasks.NewHost()
//		host.State().AddMachine("phase", "loading")
//
//		host.Start(func(tc *flowtasks.TaskContext) {
//			terrain := generateTerrain()
//			core.WriteSlot(tc, "terrain", terrain)
//			core.ScheduleTransition(tc, "phase", "ready")
//		})
//
//		for host.AreAnyRunning() {
//			host.Tick()
//		}
//	}
//
// For more details, see the core package documentation.
package flowtasks
