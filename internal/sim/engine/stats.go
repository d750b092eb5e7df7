package engine

import (
	"sync/atomic"
	"time"

	"voxelbend.ai/internal/sim/collision"
)

// Stats is a point-in-time view safe to read from any goroutine.
type Stats struct {
	Partition  string  `json:"partition"`
	Tick       uint64  `json:"tick"`
	Live       int     `json:"live"`
	Mutations  int     `json:"mutations"`
	Activated  uint64  `json:"activated"`
	Rejected   uint64  `json:"rejected"`
	Dropped    uint64  `json:"dropped_inputs"`
	Collisions uint64  `json:"collisions"`
	Hits       uint64  `json:"hits"`
	Reverted   uint64  `json:"reverted"`
	Published  uint64  `json:"published"`
	Vetoed     uint64  `json:"vetoed"`
	LastTickMs float64 `json:"last_tick_ms"`
}

type statsCounters struct {
	live       atomic.Int64
	mutations  atomic.Int64
	activated  atomic.Uint64
	rejected   atomic.Uint64
	dropped    atomic.Uint64
	collisions atomic.Uint64
	hits       atomic.Uint64
	reverted   atomic.Uint64
	lastTickNs atomic.Int64
}

func (s *statsCounters) observe(_ uint64, live, mutations int, res collision.Result, reverted int, took time.Duration) {
	s.live.Store(int64(live))
	s.mutations.Store(int64(mutations))
	s.collisions.Add(uint64(res.Pairs))
	s.hits.Add(uint64(res.Hits))
	s.reverted.Add(uint64(reverted))
	s.lastTickNs.Store(int64(took))
}

func (e *Engine) Stats() Stats {
	return Stats{
		Partition:  e.cfg.Partition,
		Tick:       e.CurrentTick(),
		Live:       int(e.stats.live.Load()),
		Mutations:  int(e.stats.mutations.Load()),
		Activated:  e.stats.activated.Load(),
		Rejected:   e.stats.rejected.Load(),
		Dropped:    e.stats.dropped.Load(),
		Collisions: e.stats.collisions.Load(),
		Hits:       e.stats.hits.Load(),
		Reverted:   e.stats.reverted.Load(),
		Published:  e.bus.published.Load(),
		Vetoed:     e.bus.vetoed.Load(),
		LastTickMs: float64(e.stats.lastTickNs.Load()) / float64(time.Millisecond),
	}
}
