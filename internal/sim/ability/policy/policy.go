// Package policy holds the removal policies abilities compose. A policy that
// fires removes the instance before it steps.
package policy

import (
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
)

// Policy names, used by Builder.Remove.
const (
	NameNotSneaking = "not_sneaking"
	NameSneaking    = "sneaking"
	NameExpired     = "expired"
	NameSwappedSlot = "swapped_slot"
	NameInLiquid    = "in_liquid"
	NameDead        = "dead"
	NameOutOfRange  = "out_of_range"
	NameAny         = "any"
	NameAll         = "all"
	NameNot         = "not"
)

// Named is a policy with a stable name.
type Named struct {
	name string
	fn   func(env *ability.Env, inst ability.Instance) bool
}

func (p Named) Name() string { return p.name }

func (p Named) ShouldRemove(env *ability.Env, inst ability.Instance) bool { return p.fn(env, inst) }

func userPolicy(name string, fn func(u host.User) bool) Named {
	return Named{name: name, fn: func(_ *ability.Env, inst ability.Instance) bool {
		u := inst.Base().User()
		if u == nil {
			return false
		}
		return fn(u)
	}}
}

func NotSneaking() Named {
	return userPolicy(NameNotSneaking, func(u host.User) bool { return !u.Sneaking() })
}

func Sneaking() Named {
	return userPolicy(NameSneaking, func(u host.User) bool { return u.Sneaking() })
}

func InLiquid() Named {
	return userPolicy(NameInLiquid, func(u host.User) bool { return u.InLiquid() })
}

func Dead() Named {
	return userPolicy(NameDead, func(u host.User) bool { return u.Dead() })
}

// Expired fires once ticks have passed since the instance was created.
func Expired(ticks uint64) Named {
	return Named{name: NameExpired, fn: func(env *ability.Env, inst ability.Instance) bool {
		return env.Tick >= inst.Base().CreatedTick()+ticks
	}}
}

// SwappedSlot fires when the user no longer has expected selected. An empty
// expected means the instance's own ability.
func SwappedSlot(expected string) Named {
	return Named{name: NameSwappedSlot, fn: func(_ *ability.Env, inst ability.Instance) bool {
		u := inst.Base().User()
		if u == nil {
			return false
		}
		want := expected
		if want == "" && inst.Base().Description() != nil {
			want = inst.Base().Description().Name
		}
		return u.SelectedAbility() != want
	}}
}

// OutOfRange fires when the user is farther than rng from origin().
func OutOfRange(origin func() geom.Vec3, rng float64) Named {
	return userPolicy(NameOutOfRange, func(u host.User) bool {
		return u.Location().Sub(origin()).LenSqr() > rng*rng
	})
}

// Any fires when one of ps fires.
func Any(ps ...ability.Policy) Named {
	return Named{name: NameAny, fn: func(env *ability.Env, inst ability.Instance) bool {
		for _, p := range ps {
			if p.ShouldRemove(env, inst) {
				return true
			}
		}
		return false
	}}
}

// All fires when every one of ps fires. An empty All never fires.
func All(ps ...ability.Policy) Named {
	return Named{name: NameAll, fn: func(env *ability.Env, inst ability.Instance) bool {
		if len(ps) == 0 {
			return false
		}
		for _, p := range ps {
			if !p.ShouldRemove(env, inst) {
				return false
			}
		}
		return true
	}}
}

func Not(p ability.Policy) Named {
	return Named{name: NameNot, fn: func(env *ability.Env, inst ability.Instance) bool {
		return !p.ShouldRemove(env, inst)
	}}
}

// Builder composes policies. It starts with Dead.
type Builder struct {
	ps []ability.Policy
}

func NewBuilder() *Builder {
	return &Builder{ps: []ability.Policy{Dead()}}
}

func (b *Builder) Add(p ability.Policy) *Builder {
	b.ps = append(b.ps, p)
	return b
}

// Remove drops every policy with the given name.
func (b *Builder) Remove(name string) *Builder {
	out := b.ps[:0]
	for _, p := range b.ps {
		if n, ok := p.(interface{ Name() string }); ok && n.Name() == name {
			continue
		}
		out = append(out, p)
	}
	b.ps = out
	return b
}

// Build returns a policy that fires when any member fires.
func (b *Builder) Build() ability.Policy {
	ps := make([]ability.Policy, len(b.ps))
	copy(ps, b.ps)
	return Any(ps...)
}
