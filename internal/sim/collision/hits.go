package collision

import (
	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/scheduler"
)

// entityHits tests every active EntityHitter against nearby entities. The
// instance's own user is never hit and HitMulti instances hit each entity once.
func (r *Resolver) entityHits(env *ability.Env, s *scheduler.Scheduler) int {
	if env.World == nil {
		return 0
	}
	total := 0
	for _, inst := range s.Active() {
		hitter, ok := inst.(ability.EntityHitter)
		if !ok || inst.Base().Description().Harmless {
			continue
		}
		h := inst.Base().Handle()
		cs, err := colliders(inst)
		if err != nil {
			r.logf("warn: instance %s colliders panic: %v", h, err)
			s.Destroy(env, h, protocol.ReasonFault)
			continue
		}
		box, ok := geom.BoundsAll(cs)
		if !ok {
			continue
		}
		self := ""
		if u := inst.Base().User(); u != nil {
			self = host.EntityIDOf(u)
		}
		mode := hitter.HitMode()
		seen := r.hits[h]

		for _, e := range env.World.EntitiesNear(box) {
			id := e.EntityID()
			if id == self {
				continue
			}
			if _, done := seen[id]; done && mode == ability.HitMulti {
				continue
			}
			if !touches(cs, e.Bounds()) {
				continue
			}
			accepted, err := onEntityHit(env, hitter, e)
			if err != nil {
				r.logf("warn: instance %s hit callback panic: %v", h, err)
				s.Destroy(env, h, protocol.ReasonFault)
				break
			}
			if !accepted {
				continue
			}
			total++
			if seen == nil {
				seen = map[string]struct{}{}
				r.hits[h] = seen
			}
			seen[id] = struct{}{}

			ev := protocol.NewEvent(protocol.EventEntityHit, env.Tick)
			if u := inst.Base().User(); u != nil {
				ev.User = u.ID().String()
			}
			ev.Instance = h.String()
			ev.Ability = inst.Base().Description().Name
			ev.Other = id
			env.Notify(ev)

			if mode == ability.HitSingle {
				s.Destroy(env, h, protocol.ReasonHit)
				break
			}
		}
	}
	return total
}

func touches(cs []geom.Collider, box geom.AABB) bool {
	for _, c := range cs {
		if geom.Intersects(c, box) {
			return true
		}
	}
	return false
}

// prune drops hit sets of instances that are gone.
func (r *Resolver) prune(s *scheduler.Scheduler) {
	for h := range r.hits {
		if _, ok := s.Get(h); !ok {
			delete(r.hits, h)
		}
	}
}
