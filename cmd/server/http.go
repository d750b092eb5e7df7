package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/pprof"
	"sort"

	"voxelbend.ai/internal/observerproto"
	persistlog "voxelbend.ai/internal/persistence/log"
	"voxelbend.ai/internal/persistence/r2s3"
	"voxelbend.ai/internal/sim/engine"
	"voxelbend.ai/internal/sim/partition"
	"voxelbend.ai/internal/transport/observer"
)

type sinkStats struct {
	journal *persistlog.EventJournal
	index   runtimeIndex
	mirror  *r2MirrorRuntime
}

type statsResponse struct {
	DefaultPartition string                   `json:"default_partition"`
	Partitions       []engine.Stats           `json:"partitions"`
	Observer         observer.HubStats        `json:"observer"`
	Journal          *persistlog.JournalStats `json:"journal,omitempty"`
	Index            any                      `json:"index,omitempty"`
	Mirror           *r2s3.Stats              `json:"mirror,omitempty"`
}

func newMux(mgr *partition.Manager, hub *observer.Hub, sinks sinkStats) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/stats", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := statsResponse{
			DefaultPartition: mgr.DefaultID(),
			Partitions:       mgr.Stats(),
			Observer:         hub.Stats(),
		}
		if sinks.journal != nil {
			st := sinks.journal.Stats()
			resp.Journal = &st
		}
		if sinks.index != nil {
			resp.Index = sinks.index.Stats()
		}
		resp.Mirror = sinks.mirror.Stats()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeEngineMetrics(rw, mgr.Stats())
	})
	mux.HandleFunc("/v1/observer", hub.WSHandler())
	mux.HandleFunc("/v1/observer/bootstrap", hub.BootstrapHandler())

	if envBool("VB_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// writeEngineMetrics renders the minimal Prometheus exposition format.
func writeEngineMetrics(rw http.ResponseWriter, stats []engine.Stats) {
	gauge := func(name, help string, value func(engine.Stats) string) {
		fmt.Fprintf(rw, "# HELP voxelbend_%s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE voxelbend_%s gauge\n", name)
		for _, st := range stats {
			fmt.Fprintf(rw, "voxelbend_%s{partition=%q} %s\n", name, st.Partition, value(st))
		}
	}
	counter := func(name, help string, value func(engine.Stats) uint64) {
		fmt.Fprintf(rw, "# HELP voxelbend_%s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE voxelbend_%s counter\n", name)
		for _, st := range stats {
			fmt.Fprintf(rw, "voxelbend_%s{partition=%q} %d\n", name, st.Partition, value(st))
		}
	}
	gauge("tick", "Current engine tick.", func(s engine.Stats) string { return fmt.Sprint(s.Tick) })
	gauge("live_instances", "Live ability instances.", func(s engine.Stats) string { return fmt.Sprint(s.Live) })
	gauge("mutations", "Pending temporary mutations.", func(s engine.Stats) string { return fmt.Sprint(s.Mutations) })
	gauge("step_ms", "Last tick duration in milliseconds.", func(s engine.Stats) string { return fmt.Sprintf("%.3f", s.LastTickMs) })
	counter("activated_total", "Instances activated.", func(s engine.Stats) uint64 { return s.Activated })
	counter("rejected_total", "Activations rejected.", func(s engine.Stats) uint64 { return s.Rejected })
	counter("dropped_inputs_total", "Inputs dropped on a full inbox.", func(s engine.Stats) uint64 { return s.Dropped })
	counter("collisions_total", "Instance collisions resolved.", func(s engine.Stats) uint64 { return s.Collisions })
	counter("hits_total", "Entity hits.", func(s engine.Stats) uint64 { return s.Hits })
	counter("reverted_total", "Mutations reverted.", func(s engine.Stats) uint64 { return s.Reverted })
	counter("vetoed_total", "Proposals vetoed by the host.", func(s engine.Stats) uint64 { return s.Vetoed })
}

func partitionInfo(rts map[string]*partition.Runtime) []observerproto.PartitionInfo {
	out := make([]observerproto.PartitionInfo, 0, len(rts))
	for id, rt := range rts {
		out = append(out, observerproto.PartitionInfo{
			ID:         id,
			TickRateHz: rt.Engine.TickRateHz(),
			Tick:       rt.Engine.CurrentTick(),
			Live:       rt.Engine.Stats().Live,
			Abilities:  rt.Engine.Abilities().Names(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
