package procstats

import (
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrAccessDenied is returned by OpenFileCount when the OS refuses to expose
// the process's descriptor table (common in sandboxed/container environments).
var ErrAccessDenied = errors.New("file descriptor enumeration denied")

// Provider reads resource usage for one process. It is the only OS-level
// capability the guardrail core depends on.
type Provider interface {
	// MemoryMB returns the resident set size in megabytes.
	MemoryMB() (float64, error)
	// CPUPercent returns CPU utilization since the previous call.
	CPUPercent() (float64, error)
	// OpenFileCount returns the number of open file descriptors. It may fail
	// with ErrAccessDenied, in which case callers fall back to their own count.
	OpenFileCount() (int, error)
}

type gopsutilProvider struct {
	proc *process.Process
}

// Self returns a Provider for the current process.
func Self() (Provider, error) {
	return ForPID(os.Getpid())
}

// ForPID returns a Provider for the given pid.
func ForPID(pid int) (Provider, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("open process %d: %w", pid, err)
	}
	// Warm-up for CPU percent baseline
	_, _ = p.CPUPercent()
	return &gopsutilProvider{proc: p}, nil
}

func (g *gopsutilProvider) MemoryMB() (float64, error) {
	mi, err := g.proc.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("memory info: %w", err)
	}
	if mi == nil {
		return 0, errors.New("memory info unavailable")
	}
	return float64(mi.RSS) / 1024 / 1024, nil
}

func (g *gopsutilProvider) CPUPercent() (float64, error) {
	cpu, err := g.proc.CPUPercent()
	if err != nil {
		return 0, fmt.Errorf("cpu percent: %w", err)
	}
	return cpu, nil
}

func (g *gopsutilProvider) OpenFileCount() (int, error) {
	n, err := g.proc.NumFDs()
	if err != nil {
		if os.IsPermission(err) {
			return 0, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		return 0, fmt.Errorf("fd count: %w", err)
	}
	return int(n), nil
}
