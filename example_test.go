package flowtasks_test

import (
	"fmt"
	"time"

	flowtasks "github.com/hostloop/go-flow-tasks"
	"github.com/hostloop/go-flow-tasks/core"
)

// ExampleHost demonstrates the basic flow: heavy work off the host loop,
// a brief exclusive window to deliver the result.
func ExampleHost() {
	host := flowtasks.NewHost()

	host.StartNamed("summer", func(tc *flowtasks.TaskContext) {
		// Runs on the task goroutine; the host loop is not blocked.
		sum := 0
		for i := 0; i < 100; i++ {
			sum += i
		}

		// One exclusive window to publish the result.
		core.WriteSlot(tc, "sum", sum)
	})

	for host.AreAnyRunning() {
		host.Tick()
	}

	fmt.Println("sum:", core.SlotOf[int](host.State(), "sum"))

	// Output:
	// sum: 4950
}

// ExampleStartTask demonstrates the single-import global host.
func ExampleStartTask() {
	flowtasks.InitGlobalHost()
	defer flowtasks.ShutdownGlobalHost()

	host := flowtasks.GetGlobalHost()
	host.State().AddEventQueue("greetings")

	flowtasks.StartTask(func(tc *flowtasks.TaskContext) {
		msg := core.AwaitEvent(tc, "greetings", func(string) bool { return true })
		core.WriteSlot(tc, "reply", "got: "+msg)
	})

	// Let the task park in its await before publishing; a transient
	// event expires two ticks after publication.
	for i := 0; i < 3; i++ {
		host.Tick()
		time.Sleep(time.Millisecond)
	}
	host.State().PublishEvent("greetings", "hello")
	for host.AreAnyRunning() {
		host.Tick()
		time.Sleep(time.Millisecond)
	}

	fmt.Println(core.SlotOf[string](host.State(), "reply"))

	// Output:
	// got: hello
}
