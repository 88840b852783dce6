package guard

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/davidkarpay/warden/internal/handles"
	"github.com/davidkarpay/warden/internal/metrics"
	"github.com/davidkarpay/warden/internal/procstats"
)

const (
	// DefaultInterval is the sampling cadence when none is configured.
	DefaultInterval = 30 * time.Second
	// DefaultJoinTimeout bounds how long Stop waits for the loop to exit.
	DefaultJoinTimeout = 5 * time.Second
)

// Callback observes snapshots that carry warnings or crossed the cleanup
// tier. Callbacks run on the monitor's background goroutine, never the
// registrant's.
type Callback func(Snapshot)

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Thresholds Thresholds
	Registry   *handles.Registry
	Provider   procstats.Provider
	// Clock substitutes the time source; nil means the real clock.
	Clock clock.Clock
}

// Monitor owns the background sampling loop. It is re-entrant: Start while
// running and Stop while stopped are no-ops, and a stop/start cycle keeps the
// snapshot history and acquisition counters.
type Monitor struct {
	thresholds Thresholds
	registry   *handles.Registry
	sampler    *Sampler
	clk        clock.Clock

	mu          sync.Mutex
	running     bool
	interval    time.Duration
	stop        chan struct{}
	done        chan struct{}
	baselineMB  float64
	baselineSet bool

	history *snapshotRing

	cbMu      sync.RWMutex
	callbacks []Callback

	// collect is swapped out in tests.
	collect func()
}

// NewMonitor builds a Monitor and takes one initial sample to seed the
// baseline and peak memory readings. The loop is not started.
func NewMonitor(opts MonitorOptions) *Monitor {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	m := &Monitor{
		thresholds: opts.Thresholds.Normalize(),
		registry:   opts.Registry,
		clk:        clk,
		history:    newSnapshotRing(snapshotHistoryCap),
		collect: func() {
			runtime.GC()
			debug.FreeOSMemory()
		},
	}
	m.sampler = NewSampler(opts.Provider, opts.Registry, m.thresholds)
	m.recordBaseline(m.sampler.Sample())
	return m
}

// Thresholds returns the monitor's limit configuration.
func (m *Monitor) Thresholds() Thresholds { return m.thresholds }

// Registry returns the handle registry the monitor supervises.
func (m *Monitor) Registry() *handles.Registry { return m.registry }

// AddCallback registers an observer. Callbacks are invoked in registration
// order; a panicking callback is recovered and logged without affecting the
// others or the loop.
func (m *Monitor) AddCallback(cb Callback) {
	if cb == nil {
		return
	}
	m.cbMu.Lock()
	m.callbacks = append(m.callbacks, cb)
	m.cbMu.Unlock()
}

// Start launches the background loop. A non-positive interval falls back to
// DefaultInterval. Calling Start while running is a no-op.
func (m *Monitor) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		log.Debug().Msg("monitor already running")
		return
	}
	m.running = true
	m.interval = interval
	stop := make(chan struct{})
	done := make(chan struct{})
	m.stop = stop
	m.done = done
	m.mu.Unlock()

	metrics.SetRunning(true)
	log.Info().Dur("interval", interval).Msg("resource monitor started")
	go m.loop(interval, stop, done)
}

// Stop clears the running flag and waits up to joinTimeout for the loop to
// observe it. Calling Stop while stopped is a no-op.
func (m *Monitor) Stop(joinTimeout time.Duration) {
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	timer := m.clk.Timer(joinTimeout)
	defer timer.Stop()
	select {
	case <-done:
		log.Info().Msg("resource monitor stopped")
	case <-timer.C:
		log.Warn().Dur("timeout", joinTimeout).Msg("monitor loop did not exit in time")
	}
	metrics.SetRunning(false)
}

// Running reports whether the background loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Interval returns the cadence of the running loop (zero before first Start).
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

func (m *Monitor) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := m.clk.Ticker(interval)
	defer ticker.Stop()
	for {
		m.iterate()
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// iterate runs one sampling pass: sample, record, evaluate, notify. One bad
// iteration must not kill the loop.
func (m *Monitor) iterate() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("monitor iteration panicked")
		}
	}()

	snap := m.sampler.Sample()
	m.recordBaseline(snap)
	m.history.push(snap)
	metrics.ObserveSample(snap.MemoryMB, m.sampler.PeakMemoryMB(), snap.CPUPercent,
		snap.OpenFiles, len(snap.Warnings))

	cleaned := m.evaluate(snap)
	if cleaned || len(snap.Warnings) > 0 {
		m.notify(snap)
	}
}

// evaluate re-checks the snapshot against the cleanup tier and triggers
// remediation synchronously. Returns whether any remediation fired.
func (m *Monitor) evaluate(snap Snapshot) bool {
	t := m.thresholds
	cleaned := false

	if snap.MemoryMB > t.cleanupMemoryMB() {
		log.Error().
			Float64("memory_mb", snap.MemoryMB).
			Float64("limit_mb", t.MaxMemoryMB).
			Msg("memory above cleanup threshold, forcing collection")
		m.collect()
		metrics.IncCleanup("memory")
		cleaned = true
	}

	if float64(snap.OpenFiles) > t.cleanupFileHandles() {
		log.Error().
			Int("open_files", snap.OpenFiles).
			Int("limit", t.MaxFileHandles).
			Msg("file handles above cleanup threshold, reclaiming stale")
		if n := m.registry.ReclaimStale(); n > 0 {
			log.Info().Int("reclaimed", n).Msg("stale handles reclaimed")
		}
		metrics.IncCleanup("file_handles")
		cleaned = true
	}

	// No remediation exists for CPU; there is nothing to release.
	if snap.CPUPercent > t.MaxCPUPercent {
		log.Error().
			Float64("cpu_percent", snap.CPUPercent).
			Float64("limit", t.MaxCPUPercent).
			Msg("cpu above limit")
	}

	return cleaned
}

// notify fans the snapshot out to every registered callback in order.
func (m *Monitor) notify(snap Snapshot) {
	m.cbMu.RLock()
	cbs := make([]Callback, len(m.callbacks))
	copy(cbs, m.callbacks)
	m.cbMu.RUnlock()

	for i, cb := range cbs {
		m.invoke(i, cb, snap)
	}
}

func (m *Monitor) invoke(i int, cb Callback, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncCallbackError()
			log.Error().Int("callback", i).Interface("panic", r).Msg("observer callback panicked")
		}
	}()
	cb(snap)
}

// Current takes a fresh snapshot outside the loop. It is not appended to the
// history.
func (m *Monitor) Current() Snapshot {
	return m.sampler.Sample()
}

// EmergencyCleanup force-closes every registered handle, forces a collection
// pass and re-samples. Callable at any time regardless of running state.
func (m *Monitor) EmergencyCleanup() Snapshot {
	log.Warn().Msg("emergency cleanup requested")
	closed := m.registry.ForceCloseAll()
	m.collect()
	snap := m.sampler.Sample()
	log.Info().
		Int("closed_handles", closed).
		Float64("memory_mb", snap.MemoryMB).
		Int("open_files", snap.OpenFiles).
		Msg("emergency cleanup finished")
	return snap
}

func (m *Monitor) recordBaseline(snap Snapshot) {
	if snap.Degraded() {
		return
	}
	m.mu.Lock()
	if !m.baselineSet {
		m.baselineMB = snap.MemoryMB
		m.baselineSet = true
	}
	m.mu.Unlock()
}

// BaselineMemoryMB returns the first successful memory reading.
func (m *Monitor) BaselineMemoryMB() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baselineMB
}

// PeakMemoryMB returns the highest memory reading observed.
func (m *Monitor) PeakMemoryMB() float64 { return m.sampler.PeakMemoryMB() }
