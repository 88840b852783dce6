package handles

import "sync"

// OwnerTracker is the host-supplied liveness capability for handle owners.
// Workers register an identity when they start and unregister when they exit;
// the registry treats any owner not currently registered as dead and eligible
// for reclamation. Registration is idempotent per identity.
type OwnerTracker struct {
	mu     sync.RWMutex
	owners map[string]struct{}
}

// NewOwnerTracker creates a tracker with the default owner pre-registered, so
// handles acquired without an explicit owner are never reclaimed.
func NewOwnerTracker() *OwnerTracker {
	return &OwnerTracker{owners: map[string]struct{}{DefaultOwner: {}}}
}

// Register marks an owner identity as alive.
func (t *OwnerTracker) Register(owner string) {
	if owner == "" {
		return
	}
	t.mu.Lock()
	t.owners[owner] = struct{}{}
	t.mu.Unlock()
}

// Unregister marks an owner identity as dead. Its open handles become
// reclaimable on the next ReclaimStale pass.
func (t *OwnerTracker) Unregister(owner string) {
	t.mu.Lock()
	delete(t.owners, owner)
	t.mu.Unlock()
}

// Alive reports whether the identity is currently registered.
func (t *OwnerTracker) Alive(owner string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.owners[owner]
	return ok
}

// Live returns the currently registered identities. The slice is a copy.
func (t *OwnerTracker) Live() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.owners))
	for o := range t.owners {
		out = append(out, o)
	}
	return out
}
