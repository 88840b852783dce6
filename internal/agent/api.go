package agent

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/davidkarpay/warden/internal/guard"
	sysrt "github.com/davidkarpay/warden/internal/runtime"
)

// Router returns the HTTP handler for the local API.
func (a *Agent) Router() http.Handler {
	mux := http.NewServeMux()

	// Liveness probe
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"status":          "ok",
			"uptime":          time.Since(a.start).String(),
			"closed":          a.closed.Load(),
			"monitor_running": a.monitor.Running(),
			"time_utc":        time.Now().UTC().Format(time.RFC3339),
		}
		if soft, hard, err := sysrt.NoFileLimit(); err == nil {
			resp["nofile_soft"] = soft
			resp["nofile_hard"] = hard
		}
		writeJSON(w, resp)
	})

	// Comprehensive report: fresh sample, thresholds, watermarks, registry
	// state, recent history.
	mux.HandleFunc("/v1/report", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, a.monitor.Report())
	})

	// Registry-only view
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, a.registry.Stats())
	})

	// Open handle listing
	mux.HandleFunc("/v1/handles", func(w http.ResponseWriter, r *http.Request) {
		st := a.registry.Stats()
		writeJSON(w, map[string]any{
			"count":   st.Open,
			"max":     st.Max,
			"entries": st.OpenEntries,
		})
	})

	// POST /v1/handles:reclaim — close handles whose owner is gone
	mux.HandleFunc("/v1/handles:reclaim", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		n := a.registry.ReclaimStale()
		log.Info().Int("reclaimed", n).Msg("reclaim requested over API")
		writeJSON(w, map[string]any{"reclaimed": n})
	})

	// POST /v1/cleanup — emergency: force-close everything, collect, re-sample
	mux.HandleFunc("/v1/cleanup", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		snap := a.monitor.EmergencyCleanup()
		writeJSON(w, snap)
	})

	// POST /v1/monitor:start?interval=10s
	mux.HandleFunc("/v1/monitor:start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		interval := parseDurationDefault(r.URL.Query().Get("interval"), a.cfg.MonitorInterval())
		a.monitor.Start(interval)
		writeJSON(w, map[string]any{
			"running":  a.monitor.Running(),
			"interval": a.monitor.Interval().String(),
		})
	})

	// POST /v1/monitor:stop?timeout=5s
	mux.HandleFunc("/v1/monitor:stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		timeout := parseDurationDefault(r.URL.Query().Get("timeout"), guard.DefaultJoinTimeout)
		a.monitor.Stop(timeout)
		writeJSON(w, map[string]any{"running": a.monitor.Running()})
	})

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Root handler with tiny landing
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Warden agent is running. See /healthz, /metrics and /v1/report\n"))
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseDurationDefault(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if dd, err := time.ParseDuration(s); err == nil && dd > 0 {
		return dd
	}
	return d
}
