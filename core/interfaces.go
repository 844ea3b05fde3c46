package core

import (
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a flow task's body panics.
//
// A panic is fatal to that task only: the runner is reclassified as
// Finished and purged on the next driver step. The host loop never sees
// the panic value, so this hook is the one place to log or report it.
//
// Implementations should be thread-safe; panics surface on task goroutines.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - id: The ID of the panicked task
	// - panicInfo: The panic value recovered from the task body
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(id TaskID, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(id TaskID, panicInfo any, stackTrace []byte) {
	fmt.Printf("[%s] Panic: %v\nStack trace:\n%s", id, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting handoff metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// All methods must be non-blocking and fast: RecordGrantedWindow in
// particular runs on the host loop thread inside the driver step.
type Metrics interface {
	// RecordHandoff records that one request/grant/release cycle completed.
	RecordHandoff(id TaskID)

	// RecordGrantedWindow records how long a task held exclusive access.
	// This is exactly how long the host loop thread was blocked.
	RecordGrantedWindow(id TaskID, duration time.Duration)

	// RecordTaskPanic records that a task body panicked.
	RecordTaskPanic(id TaskID, panicInfo any)

	// RecordTaskFinished records that a task completed and was reaped.
	//
	// Parameters:
	// - id: The ID of the finished task
	// - lifetime: Time from Start to the reap
	RecordTaskFinished(id TaskID, lifetime time.Duration)

	// RecordTaskCount records the number of live runners after a driver step.
	RecordTaskCount(count int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordHandoff is a no-op.
func (m *NilMetrics) RecordHandoff(id TaskID) {}

// RecordGrantedWindow is a no-op.
func (m *NilMetrics) RecordGrantedWindow(id TaskID, duration time.Duration) {}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(id TaskID, panicInfo any) {}

// RecordTaskFinished is a no-op.
func (m *NilMetrics) RecordTaskFinished(id TaskID, lifetime time.Duration) {}

// RecordTaskCount is a no-op.
func (m *NilMetrics) RecordTaskCount(count int) {}

// =============================================================================
// RegistryConfig: Configuration for Registry
// =============================================================================

// RegistryConfig holds configuration options for Registry.
// All fields are optional; if not provided, default implementations will be used.
type RegistryConfig struct {
	// Logger receives lifecycle and protocol log lines. Defaults to NoOpLogger.
	Logger Logger

	// PanicHandler is called when a task body panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record handoff metrics. Defaults to NilMetrics.
	Metrics Metrics

	// HistoryCapacity bounds the ring buffer of completed granted windows.
	// Defaults to defaultHandoffHistoryCapacity.
	HistoryCapacity int
}

// DefaultRegistryConfig returns a config with default handlers.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		Logger:       &NoOpLogger{},
		PanicHandler: &DefaultPanicHandler{},
		Metrics:      &NilMetrics{},
	}
}
