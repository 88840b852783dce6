package guard

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidkarpay/warden/internal/handles"
)

func newTestMonitor(p *fakeProvider) (*Monitor, *handles.Registry) {
	tt := testThresholds()
	reg := handles.NewRegistry(tt.MaxFileHandles, nil)
	m := NewMonitor(MonitorOptions{Thresholds: tt, Registry: reg, Provider: p})
	return m, reg
}

func TestEvaluateMemoryCleanup(t *testing.T) {
	p := &fakeProvider{memMB: 50, cpu: 10, open: 5}
	m, _ := newTestMonitor(p)
	collects := 0
	m.collect = func() { collects++ }

	// Cleanup tier for 100MB at 0.9 is 90MB.
	assert.False(t, m.evaluate(Snapshot{MemoryMB: 50}))
	assert.Zero(t, collects)

	assert.True(t, m.evaluate(Snapshot{MemoryMB: 95}))
	assert.Equal(t, 1, collects)

	// Exactly at the tier does not remediate.
	assert.False(t, m.evaluate(Snapshot{MemoryMB: 90}))
	assert.Equal(t, 1, collects)
}

func TestEvaluateHandleCleanupReclaimsDeadOwners(t *testing.T) {
	tt := testThresholds()
	tracker := handles.NewOwnerTracker()
	reg := handles.NewRegistry(tt.MaxFileHandles, tracker.Live)
	p := &fakeProvider{memMB: 10, cpu: 5, open: 0}
	m := NewMonitor(MonitorOptions{Thresholds: tt, Registry: reg, Provider: p})
	collects := 0
	m.collect = func() { collects++ }

	tracker.Register("worker-1")
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		_, err := reg.Acquire(filepath.Join(dir, fmt.Sprintf("f%d.txt", i)),
			handles.ModeWrite, handles.AcquireOptions{Owner: "worker-1"})
		require.NoError(t, err)
	}
	tracker.Unregister("worker-1")

	assert.True(t, m.evaluate(Snapshot{OpenFiles: 95}))
	assert.Zero(t, reg.OpenCount())
	assert.EqualValues(t, 3, reg.Stats().TotalReclaimed)
	// Handle pressure does not force a collection pass.
	assert.Zero(t, collects)
}

func TestEvaluateCPUHasNoRemediation(t *testing.T) {
	p := &fakeProvider{memMB: 10, cpu: 5, open: 1}
	m, _ := newTestMonitor(p)
	collects := 0
	m.collect = func() { collects++ }

	assert.False(t, m.evaluate(Snapshot{CPUPercent: 95}))
	assert.Zero(t, collects)
}

func TestIterateNotifiesCallbacksInOrder(t *testing.T) {
	p := &fakeProvider{memMB: 85, cpu: 10, open: 5} // warning tier only
	m, _ := newTestMonitor(p)
	m.collect = func() {}

	var order []string
	var seen Snapshot
	m.AddCallback(func(s Snapshot) {
		order = append(order, "first")
		seen = s
	})
	m.AddCallback(func(Snapshot) { panic("observer exploded") })
	m.AddCallback(func(Snapshot) { order = append(order, "third") })
	m.AddCallback(nil)

	m.iterate()
	assert.Equal(t, []string{"first", "third"}, order)
	require.Len(t, seen.Warnings, 1)
	assert.Contains(t, seen.Warnings[0], "high memory usage")

	// The panicking callback stays registered and keeps being skipped over.
	m.iterate()
	assert.Equal(t, []string{"first", "third", "first", "third"}, order)
}

func TestIterateQuietSkipsCallbacks(t *testing.T) {
	p := &fakeProvider{memMB: 10, cpu: 5, open: 1}
	m, _ := newTestMonitor(p)
	called := 0
	m.AddCallback(func(Snapshot) { called++ })

	m.iterate()
	m.iterate()
	assert.Zero(t, called)
	// Quiet snapshots are still recorded.
	assert.Equal(t, 2, m.history.len())
}

func TestMonitorStartStopIdempotent(t *testing.T) {
	mc := clock.NewMock()
	tt := testThresholds()
	reg := handles.NewRegistry(tt.MaxFileHandles, nil)
	p := &fakeProvider{memMB: 10, cpu: 5, open: 1}
	m := NewMonitor(MonitorOptions{Thresholds: tt, Registry: reg, Provider: p, Clock: mc})

	base := p.sampleCalls() // one from the constructor's baseline seed
	m.Start(time.Second)
	m.Start(time.Second) // no-op while running
	require.Eventually(t, func() bool { return p.sampleCalls() == base+1 },
		time.Second, 2*time.Millisecond)
	assert.True(t, m.Running())
	assert.Equal(t, time.Second, m.Interval())

	mc.Add(time.Second)
	require.Eventually(t, func() bool { return p.sampleCalls() == base+2 },
		time.Second, 2*time.Millisecond)
	mc.Add(time.Second)
	require.Eventually(t, func() bool { return p.sampleCalls() == base+3 },
		time.Second, 2*time.Millisecond)

	m.Stop(time.Second)
	assert.False(t, m.Running())
	m.Stop(time.Second) // no-op while stopped
	assert.False(t, m.Running())

	// One loop, one ticker: three iterations total, and none after Stop.
	mc.Add(5 * time.Second)
	assert.Equal(t, base+3, p.sampleCalls())
}

func TestMonitorStopNeverStarted(t *testing.T) {
	p := &fakeProvider{memMB: 10, cpu: 5, open: 1}
	m, _ := newTestMonitor(p)
	m.Stop(time.Second)
	assert.False(t, m.Running())
}

func TestMonitorRestartKeepsHistory(t *testing.T) {
	p := &fakeProvider{memMB: 10, cpu: 5, open: 1}
	m, _ := newTestMonitor(p)

	m.Start(5 * time.Millisecond)
	require.Eventually(t, func() bool { return m.history.len() >= 2 },
		time.Second, 2*time.Millisecond)
	m.Stop(time.Second)
	n := m.history.len()
	require.GreaterOrEqual(t, n, 2)

	m.Start(5 * time.Millisecond)
	require.Eventually(t, func() bool { return m.history.len() > n },
		time.Second, 2*time.Millisecond)
	m.Stop(time.Second)
}

func TestMonitorHistoryBounded(t *testing.T) {
	p := &fakeProvider{memMB: 10, cpu: 5, open: 1}
	m, _ := newTestMonitor(p)
	for i := 0; i < snapshotHistoryCap+25; i++ {
		m.iterate()
	}
	assert.Equal(t, snapshotHistoryCap, m.history.len())
}

func TestBaselineFirstSuccessfulSample(t *testing.T) {
	p := &fakeProvider{}
	p.setErrs(errors.New("not ready"), nil, nil)
	m, _ := newTestMonitor(p) // constructor sample degrades, baseline stays unset
	assert.Zero(t, m.BaselineMemoryMB())

	p.setErrs(nil, nil, nil)
	p.set(64, 5, 1)
	m.iterate()
	assert.Equal(t, 64.0, m.BaselineMemoryMB())

	p.set(128, 5, 1)
	m.iterate()
	assert.Equal(t, 64.0, m.BaselineMemoryMB())
	assert.Equal(t, 128.0, m.PeakMemoryMB())
}

func TestEmergencyCleanup(t *testing.T) {
	p := &fakeProvider{memMB: 10, cpu: 5, open: 0}
	m, reg := newTestMonitor(p)
	collects := 0
	m.collect = func() { collects++ }

	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		_, err := reg.Acquire(filepath.Join(dir, fmt.Sprintf("f%d.txt", i)),
			handles.ModeWrite, handles.AcquireOptions{})
		require.NoError(t, err)
	}

	snap := m.EmergencyCleanup()
	assert.Zero(t, reg.OpenCount())
	assert.EqualValues(t, 2, reg.Stats().TotalForceClosed)
	assert.Equal(t, 1, collects)
	assert.Equal(t, 10.0, snap.MemoryMB)
}

func TestReport(t *testing.T) {
	p := &fakeProvider{memMB: 42, cpu: 7, open: 3}
	m, reg := newTestMonitor(p)
	m.iterate()
	m.iterate()

	rep := m.Report()
	assert.False(t, rep.MonitorRunning)
	assert.Zero(t, rep.IntervalSeconds)
	assert.Equal(t, 42.0, rep.Current.MemoryMB)
	assert.Equal(t, testThresholds(), rep.Thresholds)
	assert.Equal(t, 42.0, rep.BaselineMemoryMB)
	assert.Equal(t, 42.0, rep.PeakMemoryMB)
	assert.Len(t, rep.RecentSnapshots, 2)
	assert.False(t, rep.Timestamp.IsZero())
	assert.Equal(t, reg.Cap(), rep.Registry.Max)
	assert.Zero(t, rep.TotalAcquired)

	// Report is a pure read; the history did not grow.
	assert.Equal(t, 2, m.history.len())
}
