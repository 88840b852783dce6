package handles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerTracker(t *testing.T) {
	tr := NewOwnerTracker()

	// The default owner is alive from the start.
	assert.True(t, tr.Alive(DefaultOwner))
	assert.False(t, tr.Alive("worker-1"))

	tr.Register("worker-1")
	tr.Register("worker-2")
	tr.Register("worker-1") // idempotent
	assert.True(t, tr.Alive("worker-1"))
	assert.ElementsMatch(t, []string{DefaultOwner, "worker-1", "worker-2"}, tr.Live())

	tr.Unregister("worker-1")
	assert.False(t, tr.Alive("worker-1"))
	assert.ElementsMatch(t, []string{DefaultOwner, "worker-2"}, tr.Live())

	// Unregistering an unknown identity is a no-op.
	tr.Unregister("ghost")
	tr.Register("")
	assert.ElementsMatch(t, []string{DefaultOwner, "worker-2"}, tr.Live())
}
