package guard

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davidkarpay/warden/internal/handles"
	"github.com/davidkarpay/warden/internal/procstats"
)

// Sampler reads current process usage and classifies it against thresholds.
// Sampling never fails: a broken provider degrades to an all-zero Snapshot
// carrying one warning that explains what went wrong.
type Sampler struct {
	provider   procstats.Provider
	registry   *handles.Registry
	thresholds Thresholds

	peakBits atomic.Uint64
}

// NewSampler wires a sampler to its metrics provider and handle registry. The
// registry supplies the open-handle fallback count when the OS denies access
// to the process descriptor table.
func NewSampler(provider procstats.Provider, registry *handles.Registry, thresholds Thresholds) *Sampler {
	return &Sampler{provider: provider, registry: registry, thresholds: thresholds}
}

// Sample produces one Snapshot.
func (s *Sampler) Sample() (snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("sampling panicked")
			snap = s.degraded(fmt.Errorf("panic: %v", r))
		}
	}()

	memMB, err := s.provider.MemoryMB()
	if err != nil {
		return s.degraded(err)
	}
	cpu, err := s.provider.CPUPercent()
	if err != nil {
		return s.degraded(err)
	}
	open, err := s.provider.OpenFileCount()
	if err != nil {
		if !errors.Is(err, procstats.ErrAccessDenied) {
			return s.degraded(err)
		}
		// The OS refused to enumerate descriptors. Fall back to the registry's
		// own count; handles opened outside the registry are undercounted.
		open = s.registry.OpenCount()
	}

	s.updatePeak(memMB)

	snap = Snapshot{
		OpenFiles:  open,
		MemoryMB:   memMB,
		CPUPercent: cpu,
		Timestamp:  time.Now(),
	}

	t := s.thresholds
	if memMB > t.warnMemoryMB() {
		snap.Warnings = append(snap.Warnings,
			fmt.Sprintf("high memory usage: %.1fMB of %.1fMB limit", memMB, t.MaxMemoryMB))
	}
	if cpu > t.warnCPUPercent() {
		snap.Warnings = append(snap.Warnings,
			fmt.Sprintf("high CPU usage: %.1f%% of %.1f%% limit", cpu, t.MaxCPUPercent))
	}
	if float64(open) > t.warnFileHandles() {
		snap.Warnings = append(snap.Warnings,
			fmt.Sprintf("high file handle count: %d of %d limit", open, t.MaxFileHandles))
	}
	return snap
}

// degraded builds the all-zero snapshot used when a reading failed.
func (s *Sampler) degraded(err error) Snapshot {
	log.Warn().Err(err).Msg("sampling degraded")
	return Snapshot{
		Timestamp: time.Now(),
		Warnings:  []string{fmt.Sprintf("sampling failed: %v", err)},
	}
}

// PeakMemoryMB returns the highest memory reading observed so far.
func (s *Sampler) PeakMemoryMB() float64 {
	return math.Float64frombits(s.peakBits.Load())
}

func (s *Sampler) updatePeak(memMB float64) {
	for {
		old := s.peakBits.Load()
		if memMB <= math.Float64frombits(old) {
			return
		}
		if s.peakBits.CompareAndSwap(old, math.Float64bits(memMB)) {
			return
		}
	}
}
