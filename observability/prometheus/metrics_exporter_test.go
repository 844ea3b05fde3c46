package prometheus

import (
	"testing"
	"time"

	"github.com/hostloop/go-flow-tasks/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("flowtasks", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	id := core.GenerateTaskID()
	exporter.RecordHandoff(id)
	exporter.RecordHandoff(id)
	exporter.RecordGrantedWindow(id, 250*time.Microsecond)
	exporter.RecordTaskPanic(id, "panic")
	exporter.RecordTaskFinished(id, 1500*time.Millisecond)
	exporter.RecordTaskCount(4)

	handoffTotal := testutil.ToFloat64(exporter.handoffTotal)
	if handoffTotal != 2 {
		t.Fatalf("handoff total = %v, want 2", handoffTotal)
	}

	panicTotal := testutil.ToFloat64(exporter.taskPanicTotal)
	if panicTotal != 1 {
		t.Fatalf("panic total = %v, want 1", panicTotal)
	}

	finishedTotal := testutil.ToFloat64(exporter.taskFinishedTotal)
	if finishedTotal != 1 {
		t.Fatalf("finished total = %v, want 1", finishedTotal)
	}

	tasksLive := testutil.ToFloat64(exporter.tasksLive)
	if tasksLive != 4 {
		t.Fatalf("tasks live = %v, want 4", tasksLive)
	}

	windowCount, err := histogramSampleCount(exporter.grantedWindowSeconds)
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if windowCount != 1 {
		t.Fatalf("granted window sample count = %d, want 1", windowCount)
	}

	lifetimeCount, err := histogramSampleCount(exporter.taskLifetimeSeconds)
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if lifetimeCount != 1 {
		t.Fatalf("lifetime sample count = %d, want 1", lifetimeCount)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("flowtasks", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("flowtasks", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	id := core.GenerateTaskID()
	first.RecordHandoff(id)
	second.RecordHandoff(id)

	got := testutil.ToFloat64(first.handoffTotal)
	if got != 2 {
		t.Fatalf("shared handoff counter = %v, want 2", got)
	}
}

func TestMetricsExporter_NilReceiverIsSafe(t *testing.T) {
	var exporter *MetricsExporter

	id := core.GenerateTaskID()
	exporter.RecordHandoff(id)
	exporter.RecordGrantedWindow(id, time.Millisecond)
	exporter.RecordTaskPanic(id, nil)
	exporter.RecordTaskFinished(id, time.Second)
	exporter.RecordTaskCount(1)
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
