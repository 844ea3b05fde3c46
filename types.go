package flowtasks

import "github.com/hostloop/go-flow-tasks/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the flowtasks package for most use cases.

// TaskFunc is the body of a flow task (Closure)
type TaskFunc = core.TaskFunc

// TaskID uniquely identifies a flow task for the lifetime of the process
type TaskID = core.TaskID

// TaskStatus describes a task runner's lifecycle state
type TaskStatus = core.TaskStatus

// TaskContext is the API surface handed to a flow task body
type TaskContext = core.TaskContext

// StateRef is the exclusive access handle for one granted window
type StateRef = core.StateRef

// State is the shared state object owned by the host loop
type State = core.State

// Registry tracks live task runners and implements the driver step
type Registry = core.Registry

// RegistryConfig holds configuration options for Registry
type RegistryConfig = core.RegistryConfig

// EventQueue is a transient, short-retention message queue inside State
type EventQueue = core.EventQueue

// EventCursor tracks a reader's position in one EventQueue
type EventCursor = core.EventCursor

// Machine is a scheduled state machine slot committed at tick edges
type Machine = core.Machine

// AssetServer loads asset batches off the host loop thread
type AssetServer = core.AssetServer

// AssetHandle is one loaded asset
type AssetHandle = core.AssetHandle

// BatchLoaded is the completion notification for one asset batch
type BatchLoaded = core.BatchLoaded

// Loader performs the actual load of one batch path
type Loader = core.Loader

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc = core.LoaderFunc

// Lifecycle status constants
const (
	TaskRunning  TaskStatus = core.TaskRunning
	TaskFinished TaskStatus = core.TaskFinished
)

// Convenience constructors
var (
	NewState              = core.NewState
	NewRegistry           = core.NewRegistry
	NewRegistryWithConfig = core.NewRegistryWithConfig
	NewAssetServer        = core.NewAssetServer
	DefaultRegistryConfig = core.DefaultRegistryConfig
)

// ErrTaskStopped is the failure a task observes when its runner is dropped
var ErrTaskStopped = core.ErrTaskStopped
