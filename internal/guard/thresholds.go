// Package guard implements the process resource guardrail: a background
// monitor that samples memory, CPU and open-handle usage, classifies the
// readings against configured thresholds, and triggers remediation or
// observer notification when a tier is crossed.
package guard

import "fmt"

// Defaults applied by Thresholds.Normalize.
const (
	DefaultMaxFileHandles  = 100
	DefaultMaxMemoryMB     = 2048.0
	DefaultMaxCPUPercent   = 80.0
	DefaultWarningFraction = 0.8
	DefaultCleanupFraction = 0.9
)

// Thresholds is the immutable limit configuration for one monitor. Usage above
// max*WarningFraction notifies observers; above max*CleanupFraction it also
// triggers remediation.
type Thresholds struct {
	MaxFileHandles  int     `json:"max_file_handles" toml:"max_file_handles"`
	MaxMemoryMB     float64 `json:"max_memory_mb" toml:"max_memory_mb"`
	MaxCPUPercent   float64 `json:"max_cpu_percent" toml:"max_cpu_percent"`
	WarningFraction float64 `json:"warning_fraction" toml:"warning_fraction"`
	CleanupFraction float64 `json:"cleanup_fraction" toml:"cleanup_fraction"`
}

// Normalize fills zero fields with defaults and returns the result.
func (t Thresholds) Normalize() Thresholds {
	if t.MaxFileHandles == 0 {
		t.MaxFileHandles = DefaultMaxFileHandles
	}
	if t.MaxMemoryMB == 0 {
		t.MaxMemoryMB = DefaultMaxMemoryMB
	}
	if t.MaxCPUPercent == 0 {
		t.MaxCPUPercent = DefaultMaxCPUPercent
	}
	if t.WarningFraction == 0 {
		t.WarningFraction = DefaultWarningFraction
	}
	if t.CleanupFraction == 0 {
		t.CleanupFraction = DefaultCleanupFraction
	}
	return t
}

// Validate rejects limit combinations the monitor cannot operate on.
func (t Thresholds) Validate() error {
	if t.MaxFileHandles <= 0 {
		return fmt.Errorf("max_file_handles must be positive, got %d", t.MaxFileHandles)
	}
	if t.MaxMemoryMB <= 0 {
		return fmt.Errorf("max_memory_mb must be positive, got %g", t.MaxMemoryMB)
	}
	if t.MaxCPUPercent <= 0 || t.MaxCPUPercent > 100 {
		return fmt.Errorf("max_cpu_percent must be in (0,100], got %g", t.MaxCPUPercent)
	}
	if t.WarningFraction <= 0 || t.WarningFraction >= 1 {
		return fmt.Errorf("warning_fraction must be in (0,1), got %g", t.WarningFraction)
	}
	if t.CleanupFraction <= 0 || t.CleanupFraction >= 1 {
		return fmt.Errorf("cleanup_fraction must be in (0,1), got %g", t.CleanupFraction)
	}
	if t.WarningFraction >= t.CleanupFraction {
		return fmt.Errorf("warning_fraction %g must be below cleanup_fraction %g",
			t.WarningFraction, t.CleanupFraction)
	}
	return nil
}

// warnMemoryMB is the memory reading above which a warning is attached.
func (t Thresholds) warnMemoryMB() float64 { return t.MaxMemoryMB * t.WarningFraction }

// warnCPUPercent is the CPU reading above which a warning is attached.
func (t Thresholds) warnCPUPercent() float64 { return t.MaxCPUPercent * t.WarningFraction }

// warnFileHandles is the open-handle count above which a warning is attached.
func (t Thresholds) warnFileHandles() float64 {
	return float64(t.MaxFileHandles) * t.WarningFraction
}

// cleanupMemoryMB is the memory reading above which remediation fires.
func (t Thresholds) cleanupMemoryMB() float64 { return t.MaxMemoryMB * t.CleanupFraction }

// cleanupFileHandles is the open-handle count above which remediation fires.
func (t Thresholds) cleanupFileHandles() float64 {
	return float64(t.MaxFileHandles) * t.CleanupFraction
}
