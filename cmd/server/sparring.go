package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/memworld"
	"voxelbend.ai/internal/sim/partition"
)

// sparringRing is the radius of the circle scripted players stand on.
const sparringRing = 8.0

type sparrer struct {
	partition string
	player    *memworld.Player
	slots     int
}

// startSparring places n scripted players in every partition, facing the ring
// center, and feeds them random inputs until ctx is done. Training dummies
// stand in the middle so hits are produced too.
func startSparring(ctx context.Context, mgr *partition.Manager, n int, logger *log.Logger) {
	var all []*sparrer
	for _, id := range mgr.PartitionIDs() {
		rt := mgr.Runtime(id)
		names := castable(rt)
		for i := 0; i < n; i++ {
			angle := 2 * math.Pi * float64(i) / float64(n)
			pos := geom.V(sparringRing*math.Sin(angle), 0, sparringRing*math.Cos(angle))
			p := memworld.NewPlayer(fmt.Sprintf("sparrer-%s-%d", id, i), pos)
			p.Look(pos.Mul(-1))
			for slot, name := range names {
				p.Bind(slot, name)
			}
			rt.World.AddEntity(p)
			all = append(all, &sparrer{partition: id, player: p, slots: len(names)})
		}
		rt.World.AddEntity(memworld.NewMob(fmt.Sprintf("dummy-%s", id), geom.V(0, 0.9, 0), 1e9))
	}
	logger.Printf("sparring: %d players across %d partitions", len(all), len(mgr.PartitionIDs()))

	go func() {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		t := time.NewTicker(250 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			for _, s := range all {
				s.act(mgr, rng, logger)
			}
		}
	}()
}

func (s *sparrer) act(mgr *partition.Manager, rng *rand.Rand, logger *log.Logger) {
	if s.slots == 0 || rng.Intn(3) != 0 {
		return
	}
	p := s.player
	p.SelectSlot(rng.Intn(s.slots))
	// Aim roughly at the center with some spread.
	aim := p.Location().Mul(-1).Add(geom.V(rng.Float64()*4-2, 0, rng.Float64()*4-2))
	p.Look(aim)

	method := ability.Attack
	if rng.Intn(4) == 0 {
		p.SetSneaking(!p.Sneaking())
		method = ability.Sneak
		if !p.Sneaking() {
			method = ability.SneakRelease
		}
	}
	if err := mgr.Input(s.partition, p, method); err != nil {
		logger.Printf("warn: sparring input %s: %v", p.Name(), err)
	}
}

// castable lists the abilities a player can bind: everything registered except
// combo-only abilities, which are reached through their sequence.
func castable(rt *partition.Runtime) []string {
	var out []string
	for _, name := range rt.Engine.Abilities().Names() {
		d, ok := rt.Engine.Abilities().Lookup(name)
		if !ok || d.Supports(ability.Sequence) {
			continue
		}
		out = append(out, name)
	}
	return out
}
