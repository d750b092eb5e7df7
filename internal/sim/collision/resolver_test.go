package collision

import (
	"testing"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/memworld"
	"voxelbend.ai/internal/sim/scheduler"
)

type orb struct {
	ability.Core

	pos       geom.Vec3
	radius    float64
	onCollide func(c *ability.Collision)
	destroyed int
}

func (o *orb) Activate(*ability.Env, ability.Activation) bool { return true }
func (o *orb) Step(*ability.Env) ability.UpdateResult         { return ability.Continue }
func (o *orb) OnDestroy(*ability.Env)                         { o.destroyed++ }

func (o *orb) Colliders() []geom.Collider {
	return []geom.Collider{geom.Sphere{Center: o.pos, Radius: o.radius}}
}

func (o *orb) OnCollision(_ *ability.Env, c *ability.Collision) {
	if o.onCollide != nil {
		o.onCollide(c)
	}
}

type chargedOrb struct {
	orb
	factor float64
}

func (c *chargedOrb) ChargeFactor() float64 { return c.factor }

// ghost has colliders but does not take part in collisions.
type ghost struct {
	ability.Core
}

func (*ghost) Activate(*ability.Env, ability.Activation) bool { return true }
func (*ghost) Step(*ability.Env) ability.UpdateResult         { return ability.Continue }
func (*ghost) OnDestroy(*ability.Env)                         {}

func (*ghost) Colliders() []geom.Collider {
	return []geom.Collider{geom.Sphere{Radius: 5}}
}

type bolt struct {
	orb
	mode ability.HitMode
	hit  []string
}

func (b *bolt) HitMode() ability.HitMode { return b.mode }

func (b *bolt) OnEntityHit(_ *ability.Env, e host.Entity) bool {
	b.hit = append(b.hit, e.EntityID())
	return true
}

// jammed panics when asked to hit an entity.
type jammed struct {
	bolt
}

func (j *jammed) OnEntityHit(*ability.Env, host.Entity) bool { panic("jammed") }

// cracked panics when asked for its colliders.
type cracked struct {
	orb
}

func (*cracked) Colliders() []geom.Collider { panic("cracked") }

// crackedHitter is an entity hitter outside instance collisions whose colliders panic.
type crackedHitter struct {
	ability.Core
}

func (*crackedHitter) Activate(*ability.Env, ability.Activation) bool { return true }
func (*crackedHitter) Step(*ability.Env) ability.UpdateResult         { return ability.Continue }
func (*crackedHitter) OnDestroy(*ability.Env)                         {}
func (*crackedHitter) Colliders() []geom.Collider                     { panic("cracked") }
func (*crackedHitter) HitMode() ability.HitMode                       { return ability.HitMulti }
func (*crackedHitter) OnEntityHit(*ability.Env, host.Entity) bool     { return true }

type harness struct {
	s      *scheduler.Scheduler
	r      *Resolver
	env    *ability.Env
	world  *memworld.World
	events []protocol.Event
	veto   bool
}

func (h *harness) Post(ev protocol.Event) bool {
	if ev.Proposal {
		return !(h.veto && ev.Type == protocol.ProposalCollision)
	}
	h.events = append(h.events, ev)
	return true
}

func newHarness(cfg Config) *harness {
	h := &harness{s: scheduler.New(nil), r: New(cfg), world: memworld.New()}
	h.env = &ability.Env{World: h.world, Events: h, Cooldowns: host.NoCooldowns{}}
	return h
}

func (h *harness) spawn(t *testing.T, u host.User, name string, build func(core ability.Core) ability.Instance) ability.Instance {
	t.Helper()
	d := &ability.Description{Name: name, Activations: []ability.Activation{ability.Attack}}
	var inst ability.Instance
	d.New = func(u host.User) ability.Instance {
		inst = build(ability.NewCore(u, d))
		return inst
	}
	if _, err := h.s.TryActivate(h.env, u, d, ability.Attack); err != nil {
		t.Fatalf("activate %s: %v", name, err)
	}
	h.s.Promote()
	return inst
}

// destroyReasons lists the destroy reasons reported for inst.
func (h *harness) destroyReasons(inst ability.Instance) []string {
	var out []string
	for _, ev := range h.events {
		if ev.Type == protocol.EventInstanceDestroyed && ev.Instance == inst.Base().Handle().String() {
			out = append(out, ev.Reason)
		}
	}
	return out
}

func (h *harness) live(inst ability.Instance) bool {
	_, ok := h.s.Get(inst.Base().Handle())
	return ok
}

func charged(pos geom.Vec3, factor float64) func(ability.Core) ability.Instance {
	return func(c ability.Core) ability.Instance {
		return &chargedOrb{orb: orb{Core: c, pos: pos, radius: 1}, factor: factor}
	}
}

func plain(pos geom.Vec3) func(ability.Core) ability.Instance {
	return func(c ability.Core) ability.Instance { return &orb{Core: c, pos: pos, radius: 1} }
}

func players() (*memworld.Player, *memworld.Player) {
	return memworld.NewPlayer("ana", geom.V(0, 0, 0)), memworld.NewPlayer("bo", geom.V(10, 0, 0))
}

func TestResolve_EqualChargeRemovesBoth(t *testing.T) {
	h := newHarness(Config{})
	ana, bo := players()
	a := h.spawn(t, ana, "FireBlast", charged(geom.V(0, 1, 0), 1.0))
	b := h.spawn(t, bo, "FireBlast", charged(geom.V(1.5, 1, 0), 1.0))

	res := h.r.Resolve(h.env, h.s)
	if res.Pairs != 1 || res.Removed != 2 {
		t.Fatalf("result %+v", res)
	}
	if h.live(a) || h.live(b) {
		t.Fatalf("both blasts should be removed")
	}
	var merged bool
	for _, ev := range h.events {
		if ev.Type == protocol.EventCollision {
			merged, _ = ev.Data["merged"].(bool)
		}
	}
	if !merged {
		t.Fatalf("equal charges should merge")
	}
}

func TestResolve_StrongerChargeSurvives(t *testing.T) {
	h := newHarness(Config{})
	ana, bo := players()
	strong := h.spawn(t, ana, "FireBlast", charged(geom.V(0, 1, 0), 1.5))
	weak := h.spawn(t, bo, "FireBlast", charged(geom.V(1.5, 1, 0), 1.0))

	h.r.Resolve(h.env, h.s)
	if !h.live(strong) || h.live(weak) {
		t.Fatalf("only the stronger blast should survive")
	}
}

func TestResolve_UnchargedPairBothRemoved(t *testing.T) {
	h := newHarness(Config{})
	ana, bo := players()
	a := h.spawn(t, ana, "A", plain(geom.V(0, 0, 0)))
	b := h.spawn(t, bo, "B", plain(geom.V(1, 0, 0)))
	far := h.spawn(t, bo, "C", plain(geom.V(50, 0, 0)))

	h.r.Resolve(h.env, h.s)
	if h.live(a) || h.live(b) || !h.live(far) {
		t.Fatalf("unexpected survivors")
	}
	if a.(*orb).destroyed != 1 || b.(*orb).destroyed != 1 {
		t.Fatalf("cleanup must run once")
	}
}

func TestResolve_OverrideKeepsShield(t *testing.T) {
	h := newHarness(Config{})
	ana, bo := players()
	shield := h.spawn(t, ana, "AirShield", func(c ability.Core) ability.Instance {
		return &orb{Core: c, pos: geom.V(0, 0, 0), radius: 3, onCollide: func(c *ability.Collision) {
			c.RemoveSelf = false
		}}
	})
	blast := h.spawn(t, bo, "FireBlast", plain(geom.V(2, 0, 0)))

	h.r.Resolve(h.env, h.s)
	if !h.live(shield) || h.live(blast) {
		t.Fatalf("shield should stop the blast and survive")
	}
}

func TestResolve_RemovalIsAndAcrossPairs(t *testing.T) {
	h := newHarness(Config{})
	ana, bo := players()
	cyd := memworld.NewPlayer("cyd", geom.V(0, 0, 0))
	mid := h.spawn(t, ana, "Mid", charged(geom.V(0, 0, 0), 1.2))
	weak := h.spawn(t, bo, "Weak", charged(geom.V(-1.5, 0, 0), 1.0))
	strong := h.spawn(t, cyd, "Strong", charged(geom.V(1.5, 0, 0), 2.0))

	h.r.Resolve(h.env, h.s)
	// mid beat weak, so that pair votes to keep it even though strong beat mid.
	if !h.live(mid) || h.live(weak) || !h.live(strong) {
		t.Fatalf("mid=%v weak=%v strong=%v", h.live(mid), h.live(weak), h.live(strong))
	}
}

func TestResolve_SameUserSkipped(t *testing.T) {
	ana, _ := players()

	h := newHarness(Config{})
	a := h.spawn(t, ana, "A", plain(geom.V(0, 0, 0)))
	b := h.spawn(t, ana, "B", plain(geom.V(1, 0, 0)))
	h.r.Resolve(h.env, h.s)
	if !h.live(a) || !h.live(b) {
		t.Fatalf("same-user instances should not collide by default")
	}

	h2 := newHarness(Config{CollideSameUser: true})
	a2 := h2.spawn(t, ana, "A", plain(geom.V(0, 0, 0)))
	b2 := h2.spawn(t, ana, "B", plain(geom.V(1, 0, 0)))
	h2.r.Resolve(h2.env, h2.s)
	if h2.live(a2) || h2.live(b2) {
		t.Fatalf("CollideSameUser should allow the collision")
	}
}

func TestResolve_NonCollidableAndVetoed(t *testing.T) {
	h := newHarness(Config{})
	ana, bo := players()
	g := h.spawn(t, ana, "Ghost", func(c ability.Core) ability.Instance { return &ghost{Core: c} })
	a := h.spawn(t, bo, "A", plain(geom.V(0, 0, 0)))
	h.r.Resolve(h.env, h.s)
	if !h.live(g) || !h.live(a) {
		t.Fatalf("non-collidable instance took part in a collision")
	}

	h.veto = true
	b := h.spawn(t, ana, "B", plain(geom.V(1, 0, 0)))
	res := h.r.Resolve(h.env, h.s)
	if res.Pairs != 0 || !h.live(a) || !h.live(b) {
		t.Fatalf("vetoed collision resolved: %+v", res)
	}
}

func TestResolve_CallbackPanicRemovesOnlyThatInstance(t *testing.T) {
	h := newHarness(Config{})
	ana, bo := players()
	bad := h.spawn(t, ana, "Bad", func(c ability.Core) ability.Instance {
		return &orb{Core: c, pos: geom.V(0, 0, 0), radius: 1, onCollide: func(*ability.Collision) { panic("boom") }}
	})
	good := h.spawn(t, bo, "Good", func(c ability.Core) ability.Instance {
		return &orb{Core: c, pos: geom.V(1, 0, 0), radius: 1, onCollide: func(c *ability.Collision) { c.RemoveSelf = false }}
	})
	h.r.Resolve(h.env, h.s)
	if h.live(bad) || !h.live(good) {
		t.Fatalf("bad=%v good=%v", h.live(bad), h.live(good))
	}
	for _, ev := range h.events {
		if ev.Type == protocol.EventInstanceDestroyed && ev.Reason != protocol.ReasonFault {
			t.Fatalf("unexpected destroy reason %q", ev.Reason)
		}
	}
}

func TestEntityHits(t *testing.T) {
	h := newHarness(Config{})
	ana, _ := players()
	h.world.AddEntity(ana)
	m1 := memworld.NewMob("mob-1", geom.V(0, 0, 1), 10)
	m2 := memworld.NewMob("mob-2", geom.V(0, 0, -1), 10)
	h.world.AddEntity(m1)
	h.world.AddEntity(m2)

	single := h.spawn(t, ana, "Single", func(c ability.Core) ability.Instance {
		return &bolt{orb: orb{Core: c, pos: geom.V(0, 0.5, 0), radius: 2}, mode: ability.HitSingle}
	}).(*bolt)
	res := h.r.Resolve(h.env, h.s)
	if res.Hits != 1 || len(single.hit) != 1 || single.hit[0] != "mob-1" {
		t.Fatalf("single hit: res=%+v hits=%v", res, single.hit)
	}
	if h.live(single) {
		t.Fatalf("single hitter should be destroyed on first hit")
	}

	multi := h.spawn(t, ana, "Multi", func(c ability.Core) ability.Instance {
		return &bolt{orb: orb{Core: c, pos: geom.V(0, 0.5, 0), radius: 2}, mode: ability.HitMulti}
	}).(*bolt)
	for i := 0; i < 3; i++ {
		h.r.Resolve(h.env, h.s)
	}
	if len(multi.hit) != 2 {
		t.Fatalf("multi should hit each entity once, got %v", multi.hit)
	}
	for _, id := range multi.hit {
		if id == ana.EntityID() {
			t.Fatalf("hitter hit its own user")
		}
	}
	if !h.live(multi) {
		t.Fatalf("multi hitter should survive")
	}
}

func TestEntityHits_CallbackPanicRemovesOnlyThatInstance(t *testing.T) {
	h := newHarness(Config{})
	ana, _ := players()
	h.world.AddEntity(memworld.NewMob("mob-1", geom.V(0, 0, 1), 10))

	bad := h.spawn(t, ana, "Jammed", func(c ability.Core) ability.Instance {
		return &jammed{bolt: bolt{orb: orb{Core: c, pos: geom.V(0, 0.5, 0), radius: 2}, mode: ability.HitMulti}}
	}).(*jammed)
	good := h.spawn(t, ana, "Steady", func(c ability.Core) ability.Instance {
		return &bolt{orb: orb{Core: c, pos: geom.V(0, 0.5, 0), radius: 2}, mode: ability.HitMulti}
	}).(*bolt)

	res := h.r.Resolve(h.env, h.s)
	if h.live(bad) || !h.live(good) {
		t.Fatalf("bad=%v good=%v", h.live(bad), h.live(good))
	}
	if r := h.destroyReasons(bad); len(r) != 1 || r[0] != protocol.ReasonFault {
		t.Fatalf("bad destroy reasons %v", r)
	}
	if bad.destroyed != 1 {
		t.Fatalf("cleanup ran %d times", bad.destroyed)
	}
	if res.Hits != 1 || len(good.hit) != 1 || good.hit[0] != "mob-1" {
		t.Fatalf("steady hitter: res=%+v hits=%v", res, good.hit)
	}
}

func TestResolve_CollidersPanicRemovesOnlyThatInstance(t *testing.T) {
	h := newHarness(Config{})
	ana, bo := players()
	bad := h.spawn(t, ana, "Cracked", func(c ability.Core) ability.Instance {
		return &cracked{orb: orb{Core: c, pos: geom.V(0, 0, 0), radius: 1}}
	})
	good := h.spawn(t, bo, "Good", plain(geom.V(1, 0, 0)))
	other := h.spawn(t, ana, "Other", plain(geom.V(1.5, 0, 0)))

	res := h.r.Resolve(h.env, h.s)
	if h.live(bad) {
		t.Fatalf("instance with panicking colliders still live")
	}
	if r := h.destroyReasons(bad); len(r) != 1 || r[0] != protocol.ReasonFault {
		t.Fatalf("bad destroy reasons %v", r)
	}
	// good and other still collide with each other normally.
	if res.Pairs != 1 || h.live(good) || h.live(other) {
		t.Fatalf("res=%+v good=%v other=%v", res, h.live(good), h.live(other))
	}
	for _, inst := range []ability.Instance{good, other} {
		if r := h.destroyReasons(inst); len(r) != 1 || r[0] != protocol.ReasonCollision {
			t.Fatalf("%s destroy reasons %v", inst.Base().Description().Name, r)
		}
	}
}

func TestEntityHits_CollidersPanicRemovesOnlyThatInstance(t *testing.T) {
	h := newHarness(Config{})
	ana, _ := players()
	h.world.AddEntity(memworld.NewMob("mob-1", geom.V(0, 0, 1), 10))

	bad := h.spawn(t, ana, "Cracked", func(c ability.Core) ability.Instance { return &crackedHitter{Core: c} })
	good := h.spawn(t, ana, "Steady", func(c ability.Core) ability.Instance {
		return &bolt{orb: orb{Core: c, pos: geom.V(0, 0.5, 0), radius: 2}, mode: ability.HitMulti}
	}).(*bolt)

	res := h.r.Resolve(h.env, h.s)
	if h.live(bad) || !h.live(good) {
		t.Fatalf("bad=%v good=%v", h.live(bad), h.live(good))
	}
	if r := h.destroyReasons(bad); len(r) != 1 || r[0] != protocol.ReasonFault {
		t.Fatalf("bad destroy reasons %v", r)
	}
	if res.Hits != 1 || len(good.hit) != 1 {
		t.Fatalf("steady hitter: res=%+v hits=%v", res, good.hit)
	}
}
