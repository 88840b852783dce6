package handles

import (
	"sync"
	"time"
)

// historyCap bounds the retained closed-handle records. Oldest entries are
// evicted first; Stats exposes the most recent 10.
const historyCap = 100

// CloseReason records why an entry left the registry.
type CloseReason string

const (
	ReasonReleased  CloseReason = "released"
	ReasonReclaimed CloseReason = "reclaimed"
	ReasonForced    CloseReason = "forced"
)

// Record is an immutable account of one closed handle.
type Record struct {
	Path            string      `json:"path"`
	Mode            string      `json:"mode"`
	Owner           string      `json:"owner"`
	OpenedAt        time.Time   `json:"opened_at"`
	ClosedAt        time.Time   `json:"closed_at"`
	DurationSeconds float64     `json:"duration_seconds"`
	Reason          CloseReason `json:"reason"`
}

// recordRing is a fixed-size circular buffer of Records. It carries its own
// lock because entries are closed, and therefore recorded, outside the
// registry's table lock.
type recordRing struct {
	mu    sync.Mutex
	data  []Record
	head  int
	count int
	size  int
}

func newRecordRing(size int) *recordRing {
	return &recordRing{data: make([]Record, size), size: size}
}

func (r *recordRing) push(rec Record) {
	r.mu.Lock()
	r.data[r.head] = rec
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
	r.mu.Unlock()
}

// last returns up to count records in chronological order (oldest first).
func (r *recordRing) last(count int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if count <= 0 || r.count == 0 {
		return nil
	}
	if count > r.count {
		count = r.count
	}
	out := make([]Record, count)
	// head points at the next write slot, so the newest record is at head-1.
	start := (r.head - count + r.size) % r.size
	for i := 0; i < count; i++ {
		out[i] = r.data[(start+i)%r.size]
	}
	return out
}

func (r *recordRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
