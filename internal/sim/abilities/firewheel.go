package abilities

import (
	"voxelbend.ai/internal/sim/abilities/motion"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/ability/policy"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/tuning"
)

// FireWheel rolls a burning disk along the ground, hitting every entity in its
// path once.
func FireWheel(cfg tuning.FireWheel) *ability.Description {
	d := &ability.Description{
		Name:        NameFireWheel,
		Element:     "fire",
		Cooldown:    cfg.CooldownTicks,
		Activations: []ability.Activation{ability.Attack},
	}
	d.New = func(u host.User) ability.Instance {
		return &fireWheel{Core: ability.NewCore(u, d), cfg: cfg}
	}
	return d
}

type fireWheel struct {
	ability.Core

	cfg   tuning.FireWheel
	wheel *motion.Wheel
}

func (w *fireWheel) Activate(env *ability.Env, _ ability.Activation) bool {
	u := w.User()
	if u == nil || u.InLiquid() {
		return false
	}
	if _, ok := motion.Flat(u.Direction()); !ok {
		return false
	}
	w.wheel = motion.NewWheel(u.Location(), u.Direction(), w.cfg.Speed, w.cfg.Range, w.cfg.Radius)
	env.StartCooldown(w)
	return true
}

func (w *fireWheel) RemovalPolicy() ability.Policy {
	return policy.NewBuilder().Add(policy.InLiquid()).Build()
}

func (w *fireWheel) Step(env *ability.Env) ability.UpdateResult {
	if !w.wheel.Advance() {
		return ability.Remove
	}
	center := w.wheel.Position.Add(geom.V(0, w.wheel.Radius, 0))
	if env.World != nil && env.World.LocationState(host.LocationOf(center)) != "" {
		return ability.Remove
	}
	return ability.Continue
}

func (w *fireWheel) Colliders() []geom.Collider { return []geom.Collider{w.wheel.Disk()} }

// OnCollision keeps the default votes.
func (w *fireWheel) OnCollision(*ability.Env, *ability.Collision) {}

func (w *fireWheel) HitMode() ability.HitMode { return ability.HitMulti }

func (w *fireWheel) OnEntityHit(_ *ability.Env, e host.Entity) bool {
	return damage(w, e, w.cfg.Damage)
}

func (w *fireWheel) OnDestroy(*ability.Env) {}
