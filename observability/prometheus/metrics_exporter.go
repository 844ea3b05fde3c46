package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/hostloop/go-flow-tasks/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// WindowBuckets are histogram buckets (seconds) for granted-window
	// durations. Granted windows block the host loop, so the defaults
	// skew much smaller than prom.DefBuckets.
	WindowBuckets []float64

	// LifetimeBuckets are histogram buckets (seconds) for whole-task
	// lifetimes (Start to reap).
	LifetimeBuckets []float64
}

// defaultWindowBuckets covers 10µs to ~1s; anything beyond the last
// bucket is a host-loop stall worth alerting on.
var defaultWindowBuckets = []float64{
	0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1,
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
//
// Metrics are deliberately unlabeled by task: TaskIDs are never reused,
// so labeling by id would grow the series set without bound.
type MetricsExporter struct {
	handoffTotal         prom.Counter
	grantedWindowSeconds prom.Histogram
	taskPanicTotal       prom.Counter
	taskFinishedTotal    prom.Counter
	taskLifetimeSeconds  prom.Histogram
	tasksLive            prom.Gauge
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "flowtasks"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	windowBuckets := opts.WindowBuckets
	if len(windowBuckets) == 0 {
		windowBuckets = defaultWindowBuckets
	}
	lifetimeBuckets := opts.LifetimeBuckets
	if len(lifetimeBuckets) == 0 {
		lifetimeBuckets = prom.DefBuckets
	}

	handoffTotal := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "handoff_total",
		Help:      "Total number of completed request/grant/release cycles.",
	})
	windowHist := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "granted_window_seconds",
		Help:      "Granted window duration in seconds (host loop blocked time).",
		Buckets:   windowBuckets,
	})
	panicTotal := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task body panics.",
	})
	finishedTotal := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_finished_total",
		Help:      "Total number of tasks reaped after completion.",
	})
	lifetimeHist := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_lifetime_seconds",
		Help:      "Task lifetime from start to reap in seconds.",
		Buckets:   lifetimeBuckets,
	})
	liveGauge := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_live",
		Help:      "Number of live task runners after the last driver step.",
	})

	var err error
	if handoffTotal, err = registerCollector(reg, handoffTotal); err != nil {
		return nil, err
	}
	if windowHist, err = registerCollector(reg, windowHist); err != nil {
		return nil, err
	}
	if panicTotal, err = registerCollector(reg, panicTotal); err != nil {
		return nil, err
	}
	if finishedTotal, err = registerCollector(reg, finishedTotal); err != nil {
		return nil, err
	}
	if lifetimeHist, err = registerCollector(reg, lifetimeHist); err != nil {
		return nil, err
	}
	if liveGauge, err = registerCollector(reg, liveGauge); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		handoffTotal:         handoffTotal,
		grantedWindowSeconds: windowHist,
		taskPanicTotal:       panicTotal,
		taskFinishedTotal:    finishedTotal,
		taskLifetimeSeconds:  lifetimeHist,
		tasksLive:            liveGauge,
	}, nil
}

// RecordHandoff records one completed handoff cycle.
func (m *MetricsExporter) RecordHandoff(id core.TaskID) {
	if m == nil {
		return
	}
	m.handoffTotal.Inc()
}

// RecordGrantedWindow records how long a task held exclusive access.
func (m *MetricsExporter) RecordGrantedWindow(id core.TaskID, duration time.Duration) {
	if m == nil {
		return
	}
	m.grantedWindowSeconds.Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(id core.TaskID, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.Inc()
}

// RecordTaskFinished records task completion events.
func (m *MetricsExporter) RecordTaskFinished(id core.TaskID, lifetime time.Duration) {
	if m == nil {
		return
	}
	m.taskFinishedTotal.Inc()
	m.taskLifetimeSeconds.Observe(lifetime.Seconds())
}

// RecordTaskCount records the live runner count.
func (m *MetricsExporter) RecordTaskCount(count int) {
	if m == nil {
		return
	}
	m.tasksLive.Set(float64(count))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
