package guard

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davidkarpay/warden/internal/handles"
	"github.com/davidkarpay/warden/internal/procstats"
)

// The process-wide default monitor. Explicit construction and injection is
// preferred; this wrapper exists for call sites at the process-entry boundary
// that just want a started monitor with default thresholds.
var (
	defaultOnce    sync.Once
	defaultMonitor *Monitor
	defaultTracker *handles.OwnerTracker
)

// Default returns the lazily-initialized process-wide monitor, constructing
// and starting it with default thresholds on first access.
func Default() *Monitor {
	defaultOnce.Do(func() {
		provider, err := procstats.Self()
		if err != nil {
			// Degrade to zero snapshots rather than fail the process.
			log.Error().Err(err).Msg("process metrics unavailable for default monitor")
			provider = unavailableProvider{err: err}
		}
		defaultTracker = handles.NewOwnerTracker()
		registry := handles.NewRegistry(DefaultMaxFileHandles, defaultTracker.Live)
		defaultMonitor = NewMonitor(MonitorOptions{
			Registry: registry,
			Provider: provider,
		})
		defaultMonitor.Start(DefaultInterval)
	})
	return defaultMonitor
}

// DefaultTracker returns the owner tracker backing the default monitor's
// registry. Workers register their identity here so abandoned handles can be
// reclaimed. Initializes the default monitor if needed.
func DefaultTracker() *handles.OwnerTracker {
	Default()
	return defaultTracker
}

// ShutdownDefault stops the default monitor's loop if it was ever started.
// The instance itself stays usable; a later Start resumes monitoring with the
// history and counters intact.
func ShutdownDefault(joinTimeout time.Duration) {
	if defaultMonitor != nil {
		defaultMonitor.Stop(joinTimeout)
	}
}

// unavailableProvider stands in when the real process metrics provider could
// not be constructed. Every reading fails with the original error, which the
// sampler converts into degraded snapshots.
type unavailableProvider struct{ err error }

func (p unavailableProvider) MemoryMB() (float64, error) { return 0, p.err }

func (p unavailableProvider) CPUPercent() (float64, error) { return 0, p.err }

func (p unavailableProvider) OpenFileCount() (int, error) { return 0, p.err }
