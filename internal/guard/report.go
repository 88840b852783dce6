package guard

import (
	"time"

	"github.com/davidkarpay/warden/internal/handles"
)

// Report is the aggregate view exposed to external consumers: a fresh
// snapshot, the configuration, memory watermarks, the registry state and the
// tail of the snapshot history. Serialization stays with the caller.
type Report struct {
	Timestamp        time.Time     `json:"timestamp"`
	Current          Snapshot      `json:"current"`
	Thresholds       Thresholds    `json:"thresholds"`
	MonitorRunning   bool          `json:"monitor_running"`
	IntervalSeconds  float64       `json:"interval_seconds"`
	BaselineMemoryMB float64       `json:"baseline_memory_mb"`
	PeakMemoryMB     float64       `json:"peak_memory_mb"`
	TotalAcquired    uint64        `json:"total_handles_acquired"`
	Registry         handles.Stats `json:"registry"`
	RecentSnapshots  []Snapshot    `json:"recent_snapshots,omitempty"`
}

// Report assembles the comprehensive view. Pure read: nothing is appended to
// the history and no remediation runs.
func (m *Monitor) Report() Report {
	m.mu.Lock()
	running := m.running
	interval := m.interval
	baseline := m.baselineMB
	m.mu.Unlock()

	return Report{
		Timestamp:        m.clk.Now(),
		Current:          m.sampler.Sample(),
		Thresholds:       m.thresholds,
		MonitorRunning:   running,
		IntervalSeconds:  interval.Seconds(),
		BaselineMemoryMB: baseline,
		PeakMemoryMB:     m.sampler.PeakMemoryMB(),
		TotalAcquired:    m.registry.TotalAcquired(),
		Registry:         m.registry.Stats(),
		RecentSnapshots:  m.history.last(10),
	}
}
