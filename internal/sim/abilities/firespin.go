package abilities

import (
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/tuning"
)

// FireSpin is the combo reward: a flat ring of fire expanding around the user
// until it reaches its maximum radius. It does not take part in instance
// collisions.
func FireSpin(cfg tuning.FireSpin) *ability.Description {
	d := &ability.Description{
		Name:        NameFireSpin,
		Element:     "fire",
		Cooldown:    cfg.CooldownTicks,
		Activations: []ability.Activation{ability.Sequence},
	}
	d.New = func(u host.User) ability.Instance {
		return &fireSpin{Core: ability.NewCore(u, d), cfg: cfg}
	}
	return d
}

type fireSpin struct {
	ability.Core

	cfg    tuning.FireSpin
	center geom.Vec3
	radius float64
}

func (s *fireSpin) Activate(*ability.Env, ability.Activation) bool {
	u := s.User()
	if u == nil {
		return false
	}
	s.center = u.Location().Add(geom.V(0, 1, 0))
	return true
}

func (s *fireSpin) Step(*ability.Env) ability.UpdateResult {
	s.radius += s.cfg.Growth
	if s.radius > s.cfg.MaxRadius {
		return ability.Remove
	}
	return ability.Continue
}

// The ring is degenerate until the first step grows it.
func (s *fireSpin) Colliders() []geom.Collider {
	ring := geom.NewDisk(
		geom.OBBFromAABB(geom.Box(s.center, geom.V(s.radius, 0.5, s.radius))),
		geom.Sphere{Center: s.center, Radius: s.radius},
	)
	return []geom.Collider{ring}
}

func (s *fireSpin) HitMode() ability.HitMode { return ability.HitMulti }

func (s *fireSpin) OnEntityHit(_ *ability.Env, e host.Entity) bool {
	return damage(s, e, s.cfg.Damage)
}

func (s *fireSpin) OnDestroy(env *ability.Env) { env.StartCooldown(s) }
