package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/hostloop/go-flow-tasks/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// RegistrySnapshotProvider provides current registry stats snapshots.
type RegistrySnapshotProvider interface {
	Stats() core.RegistryStats
	RunnerStatsSnapshot() []core.RunnerStats
}

// SnapshotPoller periodically exports registry Stats() snapshots into
// Prometheus gauges. Per-runner gauges are labeled by task name; runners
// that disappear between polls keep their last exported value until the
// series ages out, which is acceptable for short-lived gauges.
type SnapshotPoller struct {
	interval time.Duration

	registriesMu sync.RWMutex
	registries   map[string]RegistrySnapshotProvider

	registryTasks    *prom.GaugeVec
	registryRunning  *prom.GaugeVec
	registryTicks    *prom.GaugeVec
	registryHandoffs *prom.GaugeVec
	registryReaped   *prom.GaugeVec

	runnerRequesting *prom.GaugeVec
	runnerHandoffs   *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	registryTasks := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flowtasks",
		Name:      "registry_tasks",
		Help:      "Live task runners per registry.",
	}, []string{"registry"})
	registryRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flowtasks",
		Name:      "registry_running",
		Help:      "Scheduling gate state (1=running, 0=paused).",
	}, []string{"registry"})
	registryTicks := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flowtasks",
		Name:      "registry_ticks",
		Help:      "Driver steps executed, snapshot.",
	}, []string{"registry"})
	registryHandoffs := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flowtasks",
		Name:      "registry_handoffs",
		Help:      "Completed handoffs, snapshot.",
	}, []string{"registry"})
	registryReaped := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flowtasks",
		Name:      "registry_reaped",
		Help:      "Finished tasks reaped, snapshot.",
	}, []string{"registry"})

	runnerRequesting := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flowtasks",
		Name:      "runner_requesting",
		Help:      "Whether the runner has a pending access request (1=yes).",
	}, []string{"registry", "task"})
	runnerHandoffs := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "flowtasks",
		Name:      "runner_handoffs",
		Help:      "Completed granted windows per runner, snapshot.",
	}, []string{"registry", "task"})

	var err error
	if registryTasks, err = registerCollector(reg, registryTasks); err != nil {
		return nil, err
	}
	if registryRunning, err = registerCollector(reg, registryRunning); err != nil {
		return nil, err
	}
	if registryTicks, err = registerCollector(reg, registryTicks); err != nil {
		return nil, err
	}
	if registryHandoffs, err = registerCollector(reg, registryHandoffs); err != nil {
		return nil, err
	}
	if registryReaped, err = registerCollector(reg, registryReaped); err != nil {
		return nil, err
	}
	if runnerRequesting, err = registerCollector(reg, runnerRequesting); err != nil {
		return nil, err
	}
	if runnerHandoffs, err = registerCollector(reg, runnerHandoffs); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:         interval,
		registries:       make(map[string]RegistrySnapshotProvider),
		registryTasks:    registryTasks,
		registryRunning:  registryRunning,
		registryTicks:    registryTicks,
		registryHandoffs: registryHandoffs,
		registryReaped:   registryReaped,
		runnerRequesting: runnerRequesting,
		runnerHandoffs:   runnerHandoffs,
	}, nil
}

// AddRegistry adds or replaces a registry snapshot provider by name.
func (p *SnapshotPoller) AddRegistry(name string, provider RegistrySnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "registry")
	p.registriesMu.Lock()
	p.registries[name] = provider
	p.registriesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.registriesMu.RLock()
	defer p.registriesMu.RUnlock()

	for name, provider := range p.registries {
		stats := provider.Stats()
		p.registryTasks.WithLabelValues(name).Set(float64(stats.Tasks))
		if stats.Running {
			p.registryRunning.WithLabelValues(name).Set(1)
		} else {
			p.registryRunning.WithLabelValues(name).Set(0)
		}
		p.registryTicks.WithLabelValues(name).Set(float64(stats.Ticks))
		p.registryHandoffs.WithLabelValues(name).Set(float64(stats.Handoffs))
		p.registryReaped.WithLabelValues(name).Set(float64(stats.Reaped))

		for _, rs := range provider.RunnerStatsSnapshot() {
			task := normalizeLabel(rs.Name, rs.ID.String())
			if rs.Requesting {
				p.runnerRequesting.WithLabelValues(name, task).Set(1)
			} else {
				p.runnerRequesting.WithLabelValues(name, task).Set(0)
			}
			p.runnerHandoffs.WithLabelValues(name, task).Set(float64(rs.Handoffs))
		}
	}
}
