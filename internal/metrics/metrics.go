package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once     sync.Once
	memoryMB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "memory_mb",
			Help:      "Sampled resident memory in MB.",
		},
	)
	peakMemoryMB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "peak_memory_mb",
			Help:      "Peak resident memory observed since start, in MB.",
		},
	)
	cpuPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "cpu_percent",
			Help:      "Sampled process CPU utilization percent.",
		},
	)
	openHandles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "open_handles",
			Help:      "Open file handles at last sample.",
		},
	)
	monitorRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "running",
			Help:      "Whether the background sampling loop is running (1/0).",
		},
	)
	samplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "samples_total",
			Help:      "Number of snapshots taken by the background loop.",
		},
	)
	warningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "warnings_total",
			Help:      "Number of warning strings attached to snapshots.",
		},
	)
	cleanupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "cleanups_total",
			Help:      "Cleanup-tier remediations triggered, by resource.",
		},
		[]string{"resource"},
	)
	callbackErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "monitor",
			Name:      "callback_errors_total",
			Help:      "Observer callbacks that panicked and were recovered.",
		},
	)
	handleUtilization = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "handles",
			Name:      "utilization",
			Help:      "Open handle count divided by the configured cap.",
		},
	)
	handlesAcquired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "handles",
			Name:      "acquired_total",
			Help:      "File handles acquired through the registry.",
		},
	)
	handlesReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "handles",
			Name:      "released_total",
			Help:      "File handles released by their owners.",
		},
	)
	handlesReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "handles",
			Name:      "reclaimed_total",
			Help:      "Handles force-closed because their owner was no longer alive.",
		},
	)
	handlesForced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "handles",
			Name:      "force_closed_total",
			Help:      "Handles closed by emergency cleanup.",
		},
	)
	acquireFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "handles",
			Name:      "acquire_failures_total",
			Help:      "Acquisitions rejected because the handle cap was reached.",
		},
	)
	notifyPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "notify",
			Name:      "published_total",
			Help:      "Breach events published to the broker.",
		},
	)
	notifyDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Breach events dropped by the rate limiter.",
		},
	)
	notifyErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "notify",
			Name:      "errors_total",
			Help:      "Breach event publishes that failed.",
		},
	)
)

// Collectors register once at import; the guard keeps repeated test imports safe.
func init() {
	once.Do(func() {
		prometheus.MustRegister(
			memoryMB, peakMemoryMB, cpuPercent, openHandles, monitorRunning,
			samplesTotal, warningsTotal, cleanupsTotal, callbackErrors,
			handleUtilization, handlesAcquired, handlesReleased,
			handlesReclaimed, handlesForced, acquireFailures,
			notifyPublished, notifyDropped, notifyErrors,
		)
	})
}

// ObserveSample records one snapshot's readings.
func ObserveSample(memMB, peakMB, cpu float64, open int, warnings int) {
	memoryMB.Set(memMB)
	peakMemoryMB.Set(peakMB)
	cpuPercent.Set(cpu)
	openHandles.Set(float64(open))
	samplesTotal.Inc()
	warningsTotal.Add(float64(warnings))
}

// SetRunning flips the monitor-running gauge.
func SetRunning(running bool) {
	if running {
		monitorRunning.Set(1)
	} else {
		monitorRunning.Set(0)
	}
}

func IncCleanup(resource string) { cleanupsTotal.WithLabelValues(resource).Inc() }
func IncCallbackError()          { callbackErrors.Inc() }

func SetHandleUtilization(ratio float64) { handleUtilization.Set(ratio) }
func IncAcquired()                       { handlesAcquired.Inc() }
func IncReleased()                       { handlesReleased.Inc() }
func AddReclaimed(n int)                 { handlesReclaimed.Add(float64(n)) }
func AddForced(n int)                    { handlesForced.Add(float64(n)) }
func IncAcquireFailure()                 { acquireFailures.Inc() }

func IncNotifyPublished() { notifyPublished.Inc() }
func IncNotifyDropped()   { notifyDropped.Inc() }
func IncNotifyError()     { notifyErrors.Inc() }
