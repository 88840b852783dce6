package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRingEviction(t *testing.T) {
	r := newSnapshotRing(4)
	for i := 0; i < 9; i++ {
		r.push(Snapshot{OpenFiles: i})
	}
	assert.Equal(t, 4, r.len())

	out := r.last(4)
	require.Len(t, out, 4)
	assert.Equal(t, 5, out[0].OpenFiles)
	assert.Equal(t, 8, out[3].OpenFiles)

	assert.Len(t, r.last(99), 4)
	assert.Nil(t, r.last(0))
}

func TestSnapshotDegraded(t *testing.T) {
	assert.True(t, Snapshot{Warnings: []string{"sampling failed: x"}}.Degraded())
	assert.False(t, Snapshot{}.Degraded())
	assert.False(t, Snapshot{MemoryMB: 1, Warnings: []string{"w"}}.Degraded())
	assert.False(t, Snapshot{Warnings: []string{"a", "b"}}.Degraded())
}
