package abilities

import (
	"errors"

	"voxelbend.ai/internal/sim/abilities/motion"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/ability/policy"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/temporal"
	"voxelbend.ai/internal/sim/tuning"
)

// EarthWall raises a wall of temporary blocks in front of the user. The wall
// blocks every instance it collides with and sinks back when it expires or the
// instance is removed early.
func EarthWall(cfg tuning.EarthWall) *ability.Description {
	d := &ability.Description{
		Name:        NameEarthWall,
		Element:     "earth",
		Cooldown:    cfg.CooldownTicks,
		Activations: []ability.Activation{ability.Attack},
		Harmless:    true,
	}
	d.New = func(u host.User) ability.Instance {
		return &earthWall{Core: ability.NewCore(u, d), cfg: cfg}
	}
	return d
}

type earthWall struct {
	ability.Core

	cfg    tuning.EarthWall
	box    geom.OBB
	blocks []temporal.Handle
}

func (w *earthWall) Activate(env *ability.Env, _ ability.Activation) bool {
	u := w.User()
	if u == nil || env.World == nil || env.Mutations == nil {
		return false
	}
	dir, ok := motion.Flat(u.Direction())
	if !ok {
		return false
	}
	base := u.Location().Add(dir.Mul(w.cfg.Distance))
	right := geom.V(dir[2], 0, -dir[0])

	for x := -w.cfg.Width / 2; x < w.cfg.Width-w.cfg.Width/2; x++ {
		for y := 0; y < w.cfg.Height; y++ {
			loc := host.LocationOf(base.Add(right.Mul(float64(x))).Add(geom.V(0, float64(y), 0)))
			if env.World.LocationState(loc) != "" {
				continue
			}
			h, err := env.ApplyTemporary(w, loc, StateEarth, w.cfg.DurationTicks)
			if errors.Is(err, temporal.ErrVetoed) {
				continue
			}
			if err != nil {
				env.Logf("%s %s: raise %s: %v", w.Description().Name, w.Handle(), loc, err)
				continue
			}
			w.blocks = append(w.blocks, h)
		}
	}
	if len(w.blocks) == 0 {
		return false
	}
	half := geom.V(float64(w.cfg.Width)/2, float64(w.cfg.Height)/2, 0.5)
	w.box = geom.YawOBB(base.Add(geom.V(0, half[1], 0)), half, motion.YawOf(dir))
	return true
}

func (w *earthWall) RemovalPolicy() ability.Policy {
	return policy.Expired(w.cfg.DurationTicks)
}

func (w *earthWall) Step(*ability.Env) ability.UpdateResult { return ability.Continue }

func (w *earthWall) Colliders() []geom.Collider { return []geom.Collider{w.box} }

func (w *earthWall) OnCollision(_ *ability.Env, c *ability.Collision) {
	c.RemoveSelf = false
	c.RemoveOther = true
}

// OnDestroy sinks whatever is still standing.
func (w *earthWall) OnDestroy(env *ability.Env) {
	if env.Mutations != nil {
		env.Mutations.RevertOwned(w.Owner())
	}
	env.StartCooldown(w)
}
