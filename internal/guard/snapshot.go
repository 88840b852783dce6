package guard

import (
	"sync"
	"time"
)

// snapshotHistoryCap bounds the monitor's retained snapshot history.
const snapshotHistoryCap = 1000

// Snapshot is one point-in-time resource reading. Immutable once produced.
type Snapshot struct {
	OpenFiles  int       `json:"open_files"`
	MemoryMB   float64   `json:"memory_mb"`
	CPUPercent float64   `json:"cpu_percent"`
	Timestamp  time.Time `json:"timestamp"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// Degraded reports whether the snapshot came from a failed sampling pass.
func (s Snapshot) Degraded() bool {
	return s.OpenFiles == 0 && s.MemoryMB == 0 && s.CPUPercent == 0 && len(s.Warnings) == 1
}

// snapshotRing is a fixed-size circular buffer of Snapshots with its own lock;
// the sampling loop pushes while report requests read concurrently.
type snapshotRing struct {
	mu    sync.Mutex
	data  []Snapshot
	head  int
	count int
	size  int
}

func newSnapshotRing(size int) *snapshotRing {
	return &snapshotRing{data: make([]Snapshot, size), size: size}
}

func (r *snapshotRing) push(s Snapshot) {
	r.mu.Lock()
	r.data[r.head] = s
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
	r.mu.Unlock()
}

// last returns up to count snapshots in chronological order (oldest first).
func (r *snapshotRing) last(count int) []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if count <= 0 || r.count == 0 {
		return nil
	}
	if count > r.count {
		count = r.count
	}
	out := make([]Snapshot, count)
	start := (r.head - count + r.size) % r.size
	for i := 0; i < count; i++ {
		out[i] = r.data[(start+i)%r.size]
	}
	return out
}

func (r *snapshotRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
