// Package agent wires the guardrail together for the daemon: config in,
// registry + monitor + notifier out, plus the local HTTP API surface.
package agent

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davidkarpay/warden/internal/config"
	"github.com/davidkarpay/warden/internal/guard"
	"github.com/davidkarpay/warden/internal/handles"
	"github.com/davidkarpay/warden/internal/notify"
	"github.com/davidkarpay/warden/internal/procstats"
	sysrt "github.com/davidkarpay/warden/internal/runtime"
)

// Options defines basic runtime configuration for the agent.
type Options struct {
	// ConfigPath points at the TOML config; empty falls back to the
	// WARDEN_CONFIG env var and then to built-in defaults.
	ConfigPath string
	// HTTPAddr overrides the configured listen address when non-empty.
	HTTPAddr string
}

// Agent owns the monitor, the handle registry and the notifier for one
// process. The HTTP surface in api.go exposes it locally.
type Agent struct {
	opts   Options
	cfg    config.Config
	closed atomic.Bool
	start  time.Time

	tracker  *handles.OwnerTracker
	registry *handles.Registry
	monitor  *guard.Monitor
	notifier *notify.Notifier // nil when no backend is configured
}

// New loads configuration, constructs the guardrail and starts the monitor
// loop. Invalid configuration aborts; a broken notifier backend does not.
func New(opts Options) (*Agent, error) {
	// Load .env (best-effort) before anything else so that subsequent code
	// can use variables (e.g., broker credentials).
	config.LoadDotEnvDefault()

	if opts.ConfigPath == "" {
		opts.ConfigPath = os.Getenv("WARDEN_CONFIG")
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.HTTPAddr != "" {
		cfg.HTTP.Addr = opts.HTTPAddr
	} else if v := os.Getenv("WARDEN_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	if cfg.Limits.RaiseNoFile > 0 {
		if err := sysrt.RaiseNoFileLimit(cfg.Limits.RaiseNoFile); err != nil {
			log.Warn().Err(err).Uint64("target", cfg.Limits.RaiseNoFile).
				Msg("could not raise RLIMIT_NOFILE")
		}
	}

	provider, err := procstats.Self()
	if err != nil {
		return nil, fmt.Errorf("process metrics: %w", err)
	}

	a := &Agent{opts: opts, cfg: cfg, start: time.Now()}
	a.tracker = handles.NewOwnerTracker()
	a.registry = handles.NewRegistry(cfg.Thresholds.MaxFileHandles, a.tracker.Live)
	a.monitor = guard.NewMonitor(guard.MonitorOptions{
		Thresholds: cfg.Thresholds,
		Registry:   a.registry,
		Provider:   provider,
	})

	if cfg.Notify.Backend != "" {
		n, err := notify.New(notify.Options{
			Backend:     cfg.Notify.Backend,
			URL:         cfg.Notify.URL,
			Subject:     cfg.Notify.Subject,
			Topic:       cfg.Notify.Topic,
			ClientID:    cfg.Notify.ClientID,
			Burst:       cfg.Notify.Burst,
			MinInterval: cfg.NotifyMinInterval(),
		})
		if err != nil {
			// The notifier is advisory; a dead broker must not keep the
			// guardrail itself down.
			log.Error().Err(err).Str("backend", cfg.Notify.Backend).
				Msg("notifier disabled")
		} else {
			a.notifier = n
			a.monitor.AddCallback(n.Callback())
		}
	}

	a.monitor.Start(cfg.MonitorInterval())
	log.Info().
		Str("addr", cfg.HTTP.Addr).
		Int("max_file_handles", cfg.Thresholds.MaxFileHandles).
		Float64("max_memory_mb", cfg.Thresholds.MaxMemoryMB).
		Msg("warden agent ready")
	return a, nil
}

// Monitor returns the running resource monitor.
func (a *Agent) Monitor() *guard.Monitor { return a.monitor }

// Registry returns the bounded handle registry.
func (a *Agent) Registry() *handles.Registry { return a.registry }

// Tracker returns the owner tracker workers register with.
func (a *Agent) Tracker() *handles.OwnerTracker { return a.tracker }

// Config returns the effective configuration.
func (a *Agent) Config() config.Config { return a.cfg }

// Close stops the monitor loop and disconnects the notifier. Idempotent.
func (a *Agent) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	a.monitor.Stop(guard.DefaultJoinTimeout)
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			log.Warn().Err(err).Msg("notifier close")
		}
	}
	log.Info().Msg("agent closed")
	return nil
}
