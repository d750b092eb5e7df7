package abilities

import (
	"voxelbend.ai/internal/sim/abilities/motion"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/ability/policy"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/tuning"
)

// FireBlast is a fire stream. Attack launches it right away; sneak charges it
// until the user stops sneaking. A fully charged blast explodes on impact, and
// two fully charged blasts meeting merge into one larger explosion.
func FireBlast(cfg tuning.FireBlast) *ability.Description {
	d := &ability.Description{
		Name:        NameFireBlast,
		Element:     "fire",
		Cooldown:    cfg.CooldownTicks,
		Activations: []ability.Activation{ability.Attack, ability.Sneak},
	}
	d.New = func(u host.User) ability.Instance {
		return &fireBlast{Core: ability.NewCore(u, d), cfg: cfg, factor: 1}
	}
	return d
}

type fireBlast struct {
	ability.Core

	cfg      tuning.FireBlast
	charge   *motion.Charge
	charging bool
	stream   *motion.Stream
	factor   float64
	exploded bool
	policy   ability.Policy
}

func (b *fireBlast) Activate(env *ability.Env, method ability.Activation) bool {
	u := b.User()
	if u == nil || u.InLiquid() {
		return false
	}
	b.charge = motion.NewCharge(b.cfg.ChargeTicks, b.cfg.MaxCharge)
	if method == ability.Attack {
		b.launch(env)
		return true
	}
	b.charging = true
	b.policy = policy.NewBuilder().Add(policy.InLiquid()).Add(policy.SwappedSlot("")).Build()
	return true
}

func (b *fireBlast) launch(env *ability.Env) {
	u := b.User()
	b.charging = false
	b.factor = b.charge.Factor()
	b.stream = motion.NewStream(motion.Eye(u), u.Direction(), b.cfg.Speed*b.factor, b.cfg.Range*b.factor)
	b.policy = policy.NewBuilder().Build()
	env.StartCooldown(b)
}

func (b *fireBlast) RemovalPolicy() ability.Policy { return b.policy }

func (b *fireBlast) Step(env *ability.Env) ability.UpdateResult {
	if b.exploded {
		return ability.Remove
	}
	if b.charging {
		if b.User().Sneaking() {
			b.charge.Hold()
		} else {
			b.launch(env)
		}
		return ability.Continue
	}
	inRange := b.stream.Advance()
	if env.World != nil && env.World.LocationState(b.stream.Location()) != "" {
		b.ignite(env)
		return ability.Remove
	}
	if !inRange {
		return ability.Remove
	}
	return ability.Continue
}

// ignite sets fire to the air block the stream came from.
func (b *fireBlast) ignite(env *ability.Env) {
	if b.fullyCharged() {
		b.explode(env, b.stream.Position, b.cfg.ExplosionRadius, b.cfg.Damage*b.factor)
	}
	loc := host.LocationOf(b.stream.Swept().Origin)
	if env.Mutations == nil || env.World.LocationState(loc) != "" {
		return
	}
	if _, err := env.ApplyTemporary(b, loc, StateFire, b.cfg.FireTicks); err != nil {
		env.Logf("%s %s: ignite %s: %v", b.Description().Name, b.Handle(), loc, err)
	}
}

func (b *fireBlast) Colliders() []geom.Collider {
	if b.stream == nil {
		return nil
	}
	return []geom.Collider{b.stream.Head(b.radius()), b.stream.Swept()}
}

func (b *fireBlast) radius() float64 { return b.cfg.Radius + 0.5*(b.factor-1) }

func (b *fireBlast) ChargeFactor() float64 { return b.factor }

func (b *fireBlast) fullyCharged() bool { return b.factor >= b.cfg.MaxCharge && b.cfg.MaxCharge > 1 }

// OnCollision keeps the default charge rule and adds the merged explosion.
func (b *fireBlast) OnCollision(env *ability.Env, c *ability.Collision) {
	other, ok := c.Other.(*fireBlast)
	if !ok || !c.Merged || !b.fullyCharged() || !other.fullyCharged() {
		return
	}
	center := c.SelfCollider.Position().Add(c.OtherCollider.Position()).Mul(0.5)
	radius := b.cfg.ExplosionRadius + other.cfg.ExplosionRadius
	amount := (b.cfg.Damage + other.cfg.Damage) * (b.factor + other.factor - 1)
	b.explode(env, center, radius, amount)
	other.exploded = true
}

func (b *fireBlast) explode(env *ability.Env, center geom.Vec3, radius, amount float64) {
	if b.exploded {
		return
	}
	b.exploded = true
	blast(env, b, center, radius, amount)
}

func (b *fireBlast) HitMode() ability.HitMode { return ability.HitSingle }

func (b *fireBlast) OnEntityHit(env *ability.Env, e host.Entity) bool {
	if b.stream == nil || b.exploded {
		return false
	}
	if b.fullyCharged() {
		b.explode(env, b.stream.Position, b.cfg.ExplosionRadius, b.cfg.Damage*b.factor)
		return true
	}
	return damage(b, e, b.cfg.Damage*b.factor)
}

func (b *fireBlast) OnDestroy(*ability.Env) {}
