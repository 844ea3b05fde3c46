package core

import "time"

// HandoffRecord captures one completed granted window.
type HandoffRecord struct {
	TaskID     TaskID
	Name       string
	Tick       uint64
	GrantedAt  time.Time
	ReleasedAt time.Time
	Duration   time.Duration
}

// RunnerStats represents runtime observability state for one task runner.
type RunnerStats struct {
	ID         TaskID
	Name       string
	Status     TaskStatus
	Requesting bool
	Handoffs   int64
	StartedAt  time.Time
}

// RegistryStats represents runtime observability state for a Registry.
type RegistryStats struct {
	Tasks    int
	Running  bool
	Ticks    int64
	Handoffs int64
	Reaped   int64
}
