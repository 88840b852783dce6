package handles

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/davidkarpay/warden/internal/metrics"
)

// ErrResourceExhausted is returned by Acquire when the registry is at its cap
// and reclaiming handles from dead owners did not free a slot. It is the only
// registry failure surfaced to callers.
var ErrResourceExhausted = errors.New("file handle limit reached")

// DefaultMaxOpen is the handle cap used when none is configured.
const DefaultMaxOpen = 100

// DefaultOwner is assumed when an acquisition does not name a worker.
const DefaultOwner = "main"

// Mode selects how the underlying file is opened.
type Mode string

const (
	ModeRead      Mode = "r"
	ModeWrite     Mode = "w"
	ModeAppend    Mode = "a"
	ModeReadWrite Mode = "rw"
)

func (m Mode) flags() (int, error) {
	switch m {
	case ModeRead:
		return os.O_RDONLY, nil
	case ModeWrite:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, nil
	case ModeAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	case ModeReadWrite:
		return os.O_RDWR | os.O_CREATE, nil
	default:
		return 0, fmt.Errorf("unknown open mode %q", string(m))
	}
}

// LiveOwnersFunc enumerates the worker identities that are currently alive.
// The host environment supplies it (see OwnerTracker); nil means no owner is
// ever considered dead.
type LiveOwnersFunc func() []string

// entry is one outstanding acquisition. The registry owns the file until the
// entry is removed.
type entry struct {
	id       string
	path     string
	mode     Mode
	owner    string
	openedAt time.Time
	file     *os.File
}

// key renders the descriptive identifier (path, mode, owner).
func (e *entry) key() string { return e.path + "|" + string(e.mode) + "|" + e.owner }

// EntryInfo describes an open entry for reports.
type EntryInfo struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Mode       string    `json:"mode"`
	Owner      string    `json:"owner"`
	OpenedAt   time.Time `json:"opened_at"`
	AgeSeconds float64   `json:"age_seconds"`
}

// AcquireOptions tune a single acquisition.
type AcquireOptions struct {
	// Owner is the worker identity the handle is charged to. Defaults to
	// DefaultOwner.
	Owner string
	// Perm is the create permission for writable modes. Defaults to 0644.
	Perm os.FileMode
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Open             int         `json:"open"`
	Max              int         `json:"max"`
	Utilization      float64     `json:"utilization"`
	OpenEntries      []EntryInfo `json:"open_entries"`
	RecentHistory    []Record    `json:"recent_history"`
	TotalAcquired    uint64      `json:"total_acquired"`
	TotalReleased    uint64      `json:"total_released"`
	TotalReclaimed   uint64      `json:"total_reclaimed"`
	TotalForceClosed uint64      `json:"total_force_closed"`
	AcquireFailures  uint64      `json:"acquire_failures"`
}

// Registry is a bounded table of open scoped files. All table bookkeeping is
// done under one mutex; the blocking open/close syscalls always happen outside
// it, with in-flight opens counted as reservations so the cap holds.
type Registry struct {
	max  int
	live LiveOwnersFunc

	mu      sync.Mutex
	entries map[string]*entry
	opening int

	history *recordRing

	acquired  atomic.Uint64
	released  atomic.Uint64
	reclaimed atomic.Uint64
	forced    atomic.Uint64
	rejected  atomic.Uint64
}

// NewRegistry creates a registry capped at maxOpen concurrently open handles.
func NewRegistry(maxOpen int, live LiveOwnersFunc) *Registry {
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpen
	}
	return &Registry{
		max:     maxOpen,
		live:    live,
		entries: make(map[string]*entry),
		history: newRecordRing(historyCap),
	}
}

// Acquire opens path under the registry's cap and returns a scoped handle.
// When the registry is full it first reclaims entries owned by dead workers;
// if that does not free a slot the call fails with ErrResourceExhausted.
func (r *Registry) Acquire(path string, mode Mode, opts AcquireOptions) (*Handle, error) {
	flag, err := mode.flags()
	if err != nil {
		return nil, err
	}
	owner := opts.Owner
	if owner == "" {
		owner = DefaultOwner
	}
	perm := opts.Perm
	if perm == 0 {
		perm = 0o644
	}

	if !r.reserve() {
		if n := r.ReclaimStale(); n > 0 {
			log.Info().Int("reclaimed", n).Msg("freed handles from dead owners before acquire")
		}
		if !r.reserve() {
			r.rejected.Add(1)
			metrics.IncAcquireFailure()
			return nil, fmt.Errorf("%w: %d of %d open", ErrResourceExhausted, r.OpenCount(), r.max)
		}
	}

	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		r.unreserve()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	e := &entry{
		id:       uuid.NewString(),
		path:     path,
		mode:     mode,
		owner:    owner,
		openedAt: time.Now(),
		file:     f,
	}
	r.mu.Lock()
	r.opening--
	r.entries[e.id] = e
	open := len(r.entries)
	r.mu.Unlock()

	r.acquired.Add(1)
	metrics.IncAcquired()
	metrics.SetHandleUtilization(float64(open) / float64(r.max))
	log.Debug().Str("key", e.key()).Int("open", open).Msg("handle acquired")
	return &Handle{reg: r, e: e}, nil
}

// WithFile acquires path for the duration of fn. Release runs on every exit
// path, including a panic inside fn.
func (r *Registry) WithFile(path string, mode Mode, opts AcquireOptions, fn func(*os.File) error) error {
	h, err := r.Acquire(path, mode, opts)
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h.File())
}

// reserve claims a slot if the table plus in-flight opens are under the cap.
func (r *Registry) reserve() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries)+r.opening >= r.max {
		return false
	}
	r.opening++
	return true
}

func (r *Registry) unreserve() {
	r.mu.Lock()
	r.opening--
	r.mu.Unlock()
}

// release removes the entry and closes its file. Safe to call more than once
// per entry; only the call that removes it closes the file and records
// history.
func (r *Registry) release(e *entry, reason CloseReason) bool {
	r.mu.Lock()
	_, ok := r.entries[e.id]
	if ok {
		delete(r.entries, e.id)
	}
	open := len(r.entries)
	r.mu.Unlock()
	if !ok {
		return false
	}

	r.closeEntry(e, reason)
	r.released.Add(1)
	metrics.IncReleased()
	metrics.SetHandleUtilization(float64(open) / float64(r.max))
	return true
}

// closeEntry closes the file (best-effort) and appends the history record.
// Never called with the table lock held.
func (r *Registry) closeEntry(e *entry, reason CloseReason) {
	closedAt := time.Now()
	if err := e.file.Close(); err != nil {
		log.Warn().Str("key", e.key()).Err(err).Msg("handle close failed")
	}
	r.history.push(Record{
		Path:            e.path,
		Mode:            string(e.mode),
		Owner:           e.owner,
		OpenedAt:        e.openedAt,
		ClosedAt:        closedAt,
		DurationSeconds: closedAt.Sub(e.openedAt).Seconds(),
		Reason:          reason,
	})
}

// ReclaimStale force-closes every entry whose owner is no longer alive and
// returns how many were removed. With no liveness source it is a no-op.
func (r *Registry) ReclaimStale() int {
	if r.live == nil {
		return 0
	}
	alive := make(map[string]struct{})
	for _, o := range r.live() {
		alive[o] = struct{}{}
	}

	r.mu.Lock()
	var victims []*entry
	for id, e := range r.entries {
		if _, ok := alive[e.owner]; !ok {
			delete(r.entries, id)
			victims = append(victims, e)
		}
	}
	open := len(r.entries)
	r.mu.Unlock()

	for _, e := range victims {
		log.Warn().Str("key", e.key()).Msg("reclaiming handle from dead owner")
		r.closeEntry(e, ReasonReclaimed)
	}
	if len(victims) > 0 {
		r.reclaimed.Add(uint64(len(victims)))
		metrics.AddReclaimed(len(victims))
		metrics.SetHandleUtilization(float64(open) / float64(r.max))
	}
	return len(victims)
}

// ForceCloseAll unconditionally closes and removes every open entry. Used by
// emergency cleanup.
func (r *Registry) ForceCloseAll() int {
	r.mu.Lock()
	victims := make([]*entry, 0, len(r.entries))
	for id, e := range r.entries {
		delete(r.entries, id)
		victims = append(victims, e)
	}
	r.mu.Unlock()

	for _, e := range victims {
		log.Warn().Str("key", e.key()).Msg("force closing handle")
		r.closeEntry(e, ReasonForced)
	}
	if len(victims) > 0 {
		r.forced.Add(uint64(len(victims)))
		metrics.AddForced(len(victims))
		metrics.SetHandleUtilization(0)
	}
	return len(victims)
}

// OpenCount returns the number of open entries.
func (r *Registry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Cap returns the configured handle cap.
func (r *Registry) Cap() int { return r.max }

// TotalAcquired returns the monotonic count of successful acquisitions.
func (r *Registry) TotalAcquired() uint64 { return r.acquired.Load() }

// Stats snapshots the registry state plus the last 10 history records.
func (r *Registry) Stats() Stats {
	now := time.Now()
	r.mu.Lock()
	infos := make([]EntryInfo, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, EntryInfo{
			ID:         e.id,
			Path:       e.path,
			Mode:       string(e.mode),
			Owner:      e.owner,
			OpenedAt:   e.openedAt,
			AgeSeconds: now.Sub(e.openedAt).Seconds(),
		})
	}
	open := len(r.entries)
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].OpenedAt.Before(infos[j].OpenedAt) })

	return Stats{
		Open:             open,
		Max:              r.max,
		Utilization:      float64(open) / float64(r.max),
		OpenEntries:      infos,
		RecentHistory:    r.history.last(10),
		TotalAcquired:    r.acquired.Load(),
		TotalReleased:    r.released.Load(),
		TotalReclaimed:   r.reclaimed.Load(),
		TotalForceClosed: r.forced.Load(),
		AcquireFailures:  r.rejected.Load(),
	}
}

// Handle is a scoped acquisition. Close releases it exactly once; further
// calls are no-ops. Close never fails: an error closing the underlying file is
// logged and swallowed while the registry entry is removed regardless.
type Handle struct {
	reg *Registry
	e   *entry
}

// File exposes the underlying open file. Invalid after Close.
func (h *Handle) File() *os.File { return h.e.file }

// ID returns the unique identifier of this acquisition.
func (h *Handle) ID() string { return h.e.id }

// Owner returns the worker identity the handle is charged to.
func (h *Handle) Owner() string { return h.e.owner }

// Close releases the handle.
func (h *Handle) Close() error {
	h.reg.release(h.e, ReasonReleased)
	return nil
}
