// Package config loads the daemon's TOML configuration. The file is read once
// at startup; there is no reload path, so every knob here is immutable for the
// life of the process.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"github.com/davidkarpay/warden/internal/guard"
	"github.com/davidkarpay/warden/internal/validate"
)

// SupportedVersions is the config_version range this build accepts.
const SupportedVersions = ">=1.0.0 <2.0.0"

var supportedRange *semver.Constraints

func init() {
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		panic(err)
	}
	supportedRange = c
}

// Config is the daemon configuration.
type Config struct {
	ConfigVersion string           `toml:"config_version"`
	Thresholds    guard.Thresholds `toml:"thresholds"`
	Monitor       Monitor          `toml:"monitor"`
	HTTP          HTTP             `toml:"http"`
	Limits        Limits           `toml:"limits"`
	Notify        Notify           `toml:"notify"`
}

// Monitor holds the sampling loop settings.
type Monitor struct {
	// Interval between sampling passes, e.g. "30s".
	Interval string `toml:"interval"`
}

// HTTP holds the admin API listener settings.
type HTTP struct {
	Addr string `toml:"addr"`
}

// Limits holds optional OS limit adjustments applied at startup.
type Limits struct {
	// RaiseNoFile raises the soft RLIMIT_NOFILE toward this value when
	// non-zero. Linux only; failure is logged, not fatal.
	RaiseNoFile uint64 `toml:"raise_nofile"`
}

// Notify selects and tunes the breach notifier. An empty backend disables it.
type Notify struct {
	Backend     string `toml:"backend"` // "nats" or "mqtt"
	URL         string `toml:"url"`
	Subject     string `toml:"subject"`   // nats only
	Topic       string `toml:"topic"`     // mqtt only
	ClientID    string `toml:"client_id"` // mqtt only
	Burst       int    `toml:"burst"`
	MinInterval string `toml:"min_interval"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ConfigVersion: "1.0.0",
		Thresholds:    guard.Thresholds{}.Normalize(),
		Monitor:       Monitor{Interval: "30s"},
		HTTP:          HTTP{Addr: ":8080"},
		Notify: Notify{
			Subject:     "warden.breach",
			Topic:       "warden/breach",
			Burst:       3,
			MinInterval: "1m",
		},
	}
}

// Load reads a TOML config from path. A missing file is not an error: the
// defaults apply unchanged. A file that exists but fails to parse or validate
// aborts startup.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", path).Msg("no config file, using defaults")
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	// Also validate generically with JSON Schema
	var generic map[string]any
	if err := toml.Unmarshal(b, &generic); err == nil {
		if err := validate.ValidateConfigMap(generic); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config schema validation failed")
		}
	}
	if err := checkVersion(cfg.ConfigVersion); err != nil {
		return Config{}, err
	}
	cfg.Thresholds = cfg.Thresholds.Normalize()
	if err := cfg.Thresholds.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if _, err := parseDuration(cfg.Monitor.Interval); err != nil {
		return Config{}, fmt.Errorf("monitor.interval: %w", err)
	}
	if _, err := parseDuration(cfg.Notify.MinInterval); err != nil {
		return Config{}, fmt.Errorf("notify.min_interval: %w", err)
	}
	return cfg, nil
}

// MonitorInterval returns the parsed sampling interval, falling back to the
// monitor default when unset.
func (c Config) MonitorInterval() time.Duration {
	if d, err := parseDuration(c.Monitor.Interval); err == nil && d > 0 {
		return d
	}
	return guard.DefaultInterval
}

// NotifyMinInterval returns the parsed throttle floor between published breach
// events, falling back to one minute.
func (c Config) NotifyMinInterval() time.Duration {
	if d, err := parseDuration(c.Notify.MinInterval); err == nil && d > 0 {
		return d
	}
	return time.Minute
}

// checkVersion gates config_version against SupportedVersions. An empty value
// is accepted as current.
func checkVersion(v string) error {
	if v == "" {
		return nil
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("config_version %q: %w", v, err)
	}
	if !supportedRange.Check(sv) {
		return fmt.Errorf("config_version %s is outside the supported range %s", v, SupportedVersions)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}
