package core

import (
	"sync"
	"time"
)

// BatchID identifies one batch load request on an AssetServer.
type BatchID uint64

// AssetHandle is one loaded asset: its path and the loader's payload.
type AssetHandle struct {
	Path string
	Data any
}

// BatchLoaded is the completion notification published on the asset event
// queue when a batch finishes loading (or fails permanently). Like every
// transient event it expires two ticks after publication; a task that is
// not serviced in that window must re-check the catalog instead.
type BatchLoaded struct {
	Batch BatchID
	Path  string
	Count int
	Err   error
}

// Loader performs the actual load of one batch path. Implementations may
// block; they run on a loader goroutine, never on the host loop thread.
type Loader interface {
	LoadBatch(path string) ([]AssetHandle, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string) ([]AssetHandle, error)

// LoadBatch calls f.
func (f LoaderFunc) LoadBatch(path string) ([]AssetHandle, error) {
	return f(path)
}

// DefaultAssetEventQueue is the event queue name used when none is configured.
const DefaultAssetEventQueue = "assets.batch_loaded"

// AssetServerConfig holds configuration options for AssetServer.
type AssetServerConfig struct {
	// EventQueueName is where BatchLoaded events are published.
	// Defaults to DefaultAssetEventQueue.
	EventQueueName string

	// Retry controls re-attempts of failed loads. Defaults to DefaultRetryPolicy.
	Retry RetryPolicy

	// Logger receives load lifecycle lines. Defaults to NoOpLogger.
	Logger Logger
}

// AssetServer loads asset batches off the host loop thread.
//
// Load (called under a granted window) starts a loader goroutine and
// returns immediately. Completions park in a pending list until the host
// loop's next BeginTick drains them into the catalog and publishes a
// BatchLoaded event. The catalog itself is part of the State's exclusive
// domain: it is only read or written under a held access handle or on the
// host loop thread.
type AssetServer struct {
	loader    Loader
	retry     RetryPolicy
	logger    Logger
	queueName string

	mu        sync.Mutex
	nextBatch BatchID
	pending   []BatchLoaded
	loaded    map[BatchID][]AssetHandle

	catalog map[BatchID][]AssetHandle
}

// NewAssetServer creates an AssetServer with default configuration.
func NewAssetServer(loader Loader) *AssetServer {
	return NewAssetServerWithConfig(loader, &AssetServerConfig{})
}

// NewAssetServerWithConfig creates an AssetServer with the given configuration.
func NewAssetServerWithConfig(loader Loader, cfg *AssetServerConfig) *AssetServer {
	if cfg == nil {
		cfg = &AssetServerConfig{}
	}
	queueName := cfg.EventQueueName
	if queueName == "" {
		queueName = DefaultAssetEventQueue
	}
	retry := cfg.Retry
	if retry.BackoffRatio == 0 {
		retry = DefaultRetryPolicy()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &AssetServer{
		loader:    loader,
		retry:     retry,
		logger:    logger,
		queueName: queueName,
		loaded:    make(map[BatchID][]AssetHandle),
		catalog:   make(map[BatchID][]AssetHandle),
	}
}

// EventQueueName returns the queue BatchLoaded events are published on.
func (a *AssetServer) EventQueueName() string {
	return a.queueName
}

// Load starts loading the batch at path and returns its BatchID. The
// result becomes visible at a later tick edge: first in the catalog, then
// as a BatchLoaded event on the asset queue.
func (a *AssetServer) Load(path string) BatchID {
	a.mu.Lock()
	a.nextBatch++
	batch := a.nextBatch
	a.mu.Unlock()

	go a.loadBatch(batch, path)
	return batch
}

// Handles returns the loaded handle set for a completed batch.
func (a *AssetServer) Handles(batch BatchID) ([]AssetHandle, bool) {
	handles, ok := a.catalog[batch]
	return handles, ok
}

// loadBatch runs on a loader goroutine and retries per the retry policy.
func (a *AssetServer) loadBatch(batch BatchID, path string) {
	var handles []AssetHandle
	var err error

	for attempt := 0; ; attempt++ {
		handles, err = a.loader.LoadBatch(path)
		if err == nil {
			break
		}
		if attempt >= a.retry.MaxRetries {
			a.logger.Error("asset batch failed permanently",
				F("batch", batch), F("path", path), F("err", err))
			break
		}
		delay := a.retry.calculateDelay(attempt)
		a.logger.Warn("asset batch load failed, retrying",
			F("batch", batch), F("path", path), F("attempt", attempt+1), F("err", err))
		time.Sleep(delay)
	}

	a.mu.Lock()
	if err == nil {
		a.loaded[batch] = handles
	}
	a.pending = append(a.pending, BatchLoaded{
		Batch: batch,
		Path:  path,
		Count: len(handles),
		Err:   err,
	})
	a.mu.Unlock()
}

// drainInto moves finished batches into the catalog and publishes their
// BatchLoaded events. Called by State.BeginTick on the host loop thread.
func (a *AssetServer) drainInto(s *State) {
	a.mu.Lock()
	completions := a.pending
	a.pending = nil
	for batch, handles := range a.loaded {
		a.catalog[batch] = handles
		delete(a.loaded, batch)
	}
	a.mu.Unlock()

	if len(completions) == 0 {
		return
	}
	q := s.Events(a.queueName)
	for _, done := range completions {
		q.Publish(done)
	}
	s.bumpVersion()
}
