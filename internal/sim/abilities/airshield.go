package abilities

import (
	"voxelbend.ai/internal/sim/abilities/motion"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/ability/policy"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/tuning"
)

// AirShield is a sphere around a sneaking user that removes whatever it
// collides with and is never removed by a collision itself.
func AirShield(cfg tuning.AirShield) *ability.Description {
	d := &ability.Description{
		Name:        NameAirShield,
		Element:     "air",
		Cooldown:    cfg.CooldownTicks,
		Activations: []ability.Activation{ability.Sneak},
		Harmless:    true,
	}
	d.New = func(u host.User) ability.Instance {
		return &airShield{Core: ability.NewCore(u, d), cfg: cfg}
	}
	return d
}

type airShield struct {
	ability.Core

	cfg    tuning.AirShield
	center geom.Vec3
	policy ability.Policy
}

func (s *airShield) Activate(*ability.Env, ability.Activation) bool {
	u := s.User()
	if u == nil || u.InLiquid() {
		return false
	}
	s.center = motion.Eye(u)
	s.policy = policy.NewBuilder().
		Add(policy.NotSneaking()).
		Add(policy.SwappedSlot("")).
		Add(policy.Expired(s.cfg.DurationTicks)).
		Build()
	return true
}

func (s *airShield) RemovalPolicy() ability.Policy { return s.policy }

func (s *airShield) Step(*ability.Env) ability.UpdateResult {
	s.center = motion.Eye(s.User())
	return ability.Continue
}

func (s *airShield) Colliders() []geom.Collider {
	return []geom.Collider{geom.Sphere{Center: s.center, Radius: s.cfg.Radius}}
}

func (s *airShield) OnCollision(_ *ability.Env, c *ability.Collision) {
	c.RemoveSelf = false
	c.RemoveOther = true
}

func (s *airShield) OnDestroy(env *ability.Env) { env.StartCooldown(s) }
