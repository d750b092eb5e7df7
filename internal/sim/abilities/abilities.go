// Package abilities holds the sample abilities shipped with the server. Each
// composes motion helpers and removal policies; none of them know about the
// engine beyond ability.Env.
package abilities

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/sequence"
	"voxelbend.ai/internal/sim/tuning"
)

const (
	NameFireBlast = "FireBlast"
	NameAirShield = "AirShield"
	NameEarthWall = "EarthWall"
	NameFireWheel = "FireWheel"
	NameFireSpin  = "FireSpin"
)

var ErrUnknownAbility = errors.New("unknown sample ability")

// Block states written by the sample abilities.
const (
	StateFire  host.State = "fire"
	StateEarth host.State = "dirt"
)

// Registrar is the part of the engine RegisterAll needs.
type Registrar interface {
	Register(desc *ability.Description) error
	RegisterSequence(seq sequence.Sequence) error
}

// Descriptions builds every sample ability from t.
func Descriptions(t tuning.Abilities) []*ability.Description {
	return []*ability.Description{
		FireBlast(t.FireBlast),
		AirShield(t.AirShield),
		EarthWall(t.EarthWall),
		FireWheel(t.FireWheel),
		FireSpin(t.FireSpin),
	}
}

// RegisterAll registers every sample ability and the FireSpin combo.
func RegisterAll(r Registrar, t tuning.Abilities) error {
	return Register(r, t, nil)
}

// Register registers the sample abilities named in only (all of them when only
// is empty). The FireSpin combo is added when both FireSpin and FireBlast are.
func Register(r Registrar, t tuning.Abilities, only []string) error {
	want := map[string]bool{}
	for _, n := range only {
		want[n] = true
	}
	known := map[string]bool{}
	for _, d := range Descriptions(t) {
		known[d.Name] = true
		if len(want) > 0 && !want[d.Name] {
			continue
		}
		if err := r.Register(d); err != nil {
			return err
		}
	}
	for n := range want {
		if !known[n] {
			return fmt.Errorf("register %s: %w", n, ErrUnknownAbility)
		}
	}
	if len(want) > 0 && (!want[NameFireSpin] || !want[NameFireBlast]) {
		return nil
	}
	spin, err := FireSpinSequence()
	if err != nil {
		return err
	}
	if err := r.RegisterSequence(spin); err != nil {
		return fmt.Errorf("register %s combo: %w", NameFireSpin, err)
	}
	return nil
}

// FireSpinSequence is FireBlast attack, attack, sneak.
func FireSpinSequence() (sequence.Sequence, error) {
	return sequence.New(NameFireSpin,
		ability.Step{Ability: NameFireBlast, Activation: ability.Attack},
		ability.Step{Ability: NameFireBlast, Activation: ability.Attack},
		ability.Step{Ability: NameFireBlast, Activation: ability.Sneak},
	)
}

// damage hurts e on behalf of inst's user. It reports false for entities that
// cannot take damage.
func damage(inst ability.Instance, e host.Entity, amount float64) bool {
	d, ok := e.(host.Damageable)
	if !ok {
		return false
	}
	var src uuid.UUID
	if u := inst.Base().User(); u != nil {
		src = u.ID()
	}
	d.Damage(src, amount)
	return true
}

// blast damages every entity within radius of center except inst's own user and
// reports one entity_hit per damaged entity.
func blast(env *ability.Env, inst ability.Instance, center geom.Vec3, radius, amount float64) int {
	if env.World == nil || radius <= 0 {
		return 0
	}
	self := ""
	if u := inst.Base().User(); u != nil {
		self = host.EntityIDOf(u)
	}
	area := geom.Sphere{Center: center, Radius: radius}
	n := 0
	for _, e := range env.World.EntitiesNear(area.Bounds()) {
		if e.EntityID() == self || !geom.Intersects(area, e.Bounds()) {
			continue
		}
		if !damage(inst, e, amount) {
			continue
		}
		n++
		ev := hitEvent(env, inst, e)
		ev.Data = map[string]any{"explosion": true, "damage": amount}
		env.Notify(ev)
	}
	return n
}

func hitEvent(env *ability.Env, inst ability.Instance, e host.Entity) protocol.Event {
	ev := protocol.NewEvent(protocol.EventEntityHit, env.Tick)
	if u := inst.Base().User(); u != nil {
		ev.User = u.ID().String()
	}
	ev.Ability = inst.Base().Description().Name
	ev.Instance = inst.Base().Handle().String()
	ev.Other = e.EntityID()
	return ev
}
