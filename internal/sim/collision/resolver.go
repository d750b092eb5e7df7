// Package collision resolves instance-vs-instance collisions and instance-vs-entity
// hits once per tick, after every instance has stepped.
package collision

import (
	"fmt"
	"log"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/scheduler"
)

type Config struct {
	// CollideSameUser lets instances of one user collide with each other.
	CollideSameUser bool
	Logger          *log.Logger
}

// Result counts what one Resolve call did.
type Result struct {
	Pairs   int
	Removed int
	Hits    int
}

type Resolver struct {
	cfg  Config
	hits map[ability.Handle]map[string]struct{}
}

func New(cfg Config) *Resolver {
	return &Resolver{cfg: cfg, hits: map[ability.Handle]map[string]struct{}{}}
}

func (r *Resolver) logf(format string, args ...any) {
	if r.cfg.Logger != nil {
		r.cfg.Logger.Printf(format, args...)
	}
}

type entry struct {
	inst      ability.Instance
	handle    ability.Handle
	colliders []geom.Collider
}

// Resolve runs the collision phase over the active instances of s.
func (r *Resolver) Resolve(env *ability.Env, s *scheduler.Scheduler) Result {
	var res Result
	faults := map[ability.Handle]bool{}

	var entries []entry
	for _, inst := range s.Active() {
		if _, ok := inst.(ability.Collidable); !ok {
			continue
		}
		h := inst.Base().Handle()
		cs, err := colliders(inst)
		if err != nil {
			r.logf("warn: instance %s colliders panic: %v", h, err)
			faults[h] = true
			continue
		}
		if len(cs) == 0 {
			continue
		}
		entries = append(entries, entry{inst: inst, handle: h, colliders: cs})
	}

	// remove[h] is the AND of every pairwise vote h took part in.
	remove := map[ability.Handle]bool{}
	vote := func(h ability.Handle, v bool) {
		if prev, ok := remove[h]; ok {
			remove[h] = prev && v
			return
		}
		remove[h] = v
	}

	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if faults[a.handle] || faults[b.handle] {
				continue
			}
			if !r.cfg.CollideSameUser && sameUser(a.inst, b.inst) {
				continue
			}
			ca, cb, ok := firstIntersection(a.colliders, b.colliders)
			if !ok {
				continue
			}
			viewA := &ability.Collision{Self: a.inst, Other: b.inst, SelfCollider: ca, OtherCollider: cb, RemoveSelf: true, RemoveOther: true}
			viewB := &ability.Collision{Self: b.inst, Other: a.inst, SelfCollider: cb, OtherCollider: ca, RemoveSelf: true, RemoveOther: true}
			applyChargeRule(viewA, viewB)

			prop := protocol.NewProposal(protocol.ProposalCollision, env.Tick)
			prop.Instance = a.handle.String()
			prop.Ability = a.inst.Base().Description().Name
			prop.Other = b.handle.String()
			prop.OtherAbility = b.inst.Base().Description().Name
			if !env.Propose(prop) {
				continue
			}

			if err := onCollision(env, viewA); err != nil {
				r.logf("warn: instance %s collision callback panic: %v", a.handle, err)
				faults[a.handle] = true
			}
			if err := onCollision(env, viewB); err != nil {
				r.logf("warn: instance %s collision callback panic: %v", b.handle, err)
				faults[b.handle] = true
			}
			res.Pairs++

			removeA := viewA.RemoveSelf && viewB.RemoveOther
			removeB := viewB.RemoveSelf && viewA.RemoveOther
			vote(a.handle, removeA)
			vote(b.handle, removeB)

			ev := protocol.NewEvent(protocol.EventCollision, env.Tick)
			if u := a.inst.Base().User(); u != nil {
				ev.User = u.ID().String()
			}
			ev.Instance = a.handle.String()
			ev.Ability = a.inst.Base().Description().Name
			ev.Other = b.handle.String()
			ev.OtherAbility = b.inst.Base().Description().Name
			ev.Data = map[string]any{
				"merged":        viewA.Merged || viewB.Merged,
				"remove_self":   removeA,
				"remove_other":  removeB,
				"self_collider": ca.Kind().String(),
			}
			env.Notify(ev)
		}
	}

	// Destruction happens only after every pair was evaluated.
	for _, e := range entries {
		switch {
		case faults[e.handle]:
			if s.Destroy(env, e.handle, protocol.ReasonFault) {
				res.Removed++
			}
		case remove[e.handle]:
			if s.Destroy(env, e.handle, protocol.ReasonCollision) {
				res.Removed++
			}
		}
	}
	for _, inst := range s.Active() {
		if h := inst.Base().Handle(); faults[h] && s.Destroy(env, h, protocol.ReasonFault) {
			res.Removed++
		}
	}

	res.Hits = r.entityHits(env, s)
	r.prune(s)
	return res
}

// applyChargeRule lets the strictly stronger side veto its own removal. Equal
// charges keep mutual removal and mark the pair merged.
func applyChargeRule(a, b *ability.Collision) {
	ca, okA := a.Self.(ability.Charged)
	cb, okB := b.Self.(ability.Charged)
	if !okA || !okB {
		return
	}
	fa, fb := ca.ChargeFactor(), cb.ChargeFactor()
	switch {
	case fa > fb:
		a.RemoveSelf = false
		b.RemoveOther = false
	case fb > fa:
		b.RemoveSelf = false
		a.RemoveOther = false
	default:
		a.Merged = true
		b.Merged = true
	}
}

func sameUser(a, b ability.Instance) bool {
	ua, ub := a.Base().User(), b.Base().User()
	if ua == nil || ub == nil {
		return false
	}
	return ua.ID() == ub.ID()
}

func firstIntersection(as, bs []geom.Collider) (geom.Collider, geom.Collider, bool) {
	for _, a := range as {
		for _, b := range bs {
			if geom.Intersects(a, b) {
				return a, b, true
			}
		}
	}
	return nil, nil, false
}

func colliders(inst ability.Instance) (cs []geom.Collider, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	for _, c := range inst.Colliders() {
		if c != nil && !c.Degenerate() {
			cs = append(cs, c)
		}
	}
	return cs, nil
}

func onCollision(env *ability.Env, c *ability.Collision) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	c.Self.(ability.Collidable).OnCollision(env, c)
	return nil
}

func onEntityHit(env *ability.Env, h ability.EntityHitter, e host.Entity) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return h.OnEntityHit(env, e), nil
}
