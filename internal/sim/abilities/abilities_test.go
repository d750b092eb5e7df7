package abilities

import (
	"errors"
	"sync"
	"testing"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/engine"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/memworld"
	"voxelbend.ai/internal/sim/scheduler"
	"voxelbend.ai/internal/sim/tuning"
)

type recorder struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (r *recorder) Publish(ev protocol.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// destroyed returns the destroy reason of every instance of name.
func (r *recorder) destroyed(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Type == protocol.EventInstanceDestroyed && ev.Ability == name {
			out = append(out, ev.Reason)
		}
	}
	return out
}

func (r *recorder) created(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == protocol.EventInstanceCreated && ev.Ability == name {
			n++
		}
	}
	return n
}

type harness struct {
	e     *engine.Engine
	world *memworld.World
	rec   *recorder
}

func newHarness(t *testing.T, tune tuning.Abilities) *harness {
	t.Helper()
	h := &harness{world: memworld.New(), rec: &recorder{}}
	e, err := engine.New(engine.Config{Partition: "test", World: h.world, SequenceIdleTicks: 200, Sinks: []engine.Sink{h.rec}})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	if err := RegisterAll(e, tune); err != nil {
		t.Fatalf("register: %v", err)
	}
	h.e = e
	t.Cleanup(func() { e.Close() })
	return h
}

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.e.Tick()
	}
}

// player stands at pos looking along dir with ability on slot 0.
func player(name string, pos, dir geom.Vec3, selected string) *memworld.Player {
	p := memworld.NewPlayer(name, pos)
	p.Look(dir)
	p.Bind(0, selected)
	return p
}

var (
	_ ability.Collidable   = (*fireBlast)(nil)
	_ ability.Charged      = (*fireBlast)(nil)
	_ ability.EntityHitter = (*fireBlast)(nil)
	_ ability.Collidable   = (*airShield)(nil)
	_ ability.Collidable   = (*earthWall)(nil)
	_ ability.Collidable   = (*fireWheel)(nil)
	_ ability.EntityHitter = (*fireWheel)(nil)
	_ ability.EntityHitter = (*fireSpin)(nil)
)

func TestAbilities_ExposeCore(t *testing.T) {
	h := newHarness(t, tuning.Defaults().Abilities)
	for _, name := range h.e.Abilities().Names() {
		d, ok := h.e.Abilities().Lookup(name)
		if !ok {
			t.Fatalf("lookup %s", name)
		}
		var inst ability.Instance = d.New(nil)
		if inst.Base() == nil || inst.Base().Description() != d {
			t.Fatalf("%s: core not wired to its description", name)
		}
		inst.Base().Bind(7, 3)
		if inst.Base().Handle() != 7 || inst.Base().CreatedTick() != 3 {
			t.Fatalf("%s: bind did not reach the embedded core", name)
		}
	}
}

func TestRegisterAll(t *testing.T) {
	h := newHarness(t, tuning.Defaults().Abilities)
	names := h.e.Abilities().Names()
	if len(names) != 5 {
		t.Fatalf("abilities: %v", names)
	}
	if err := RegisterAll(h.e, tuning.Defaults().Abilities); !errors.Is(err, ability.ErrDuplicate) {
		t.Fatalf("second RegisterAll: %v", err)
	}
}

func TestFireBlast_HitsFirstEntityAndStartsCooldown(t *testing.T) {
	h := newHarness(t, tuning.Defaults().Abilities)
	mob := memworld.NewMob("m1", geom.V(5, 65, 0), 20)
	h.world.AddEntity(mob)
	ana := player("ana", geom.V(0, 64, 0), geom.V(1, 0, 0), NameFireBlast)

	if _, err := h.e.Activate(ana, NameFireBlast, ability.Attack); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := h.e.Activate(ana, NameFireBlast, ability.Attack); !errors.Is(err, scheduler.ErrOnCooldown) {
		t.Fatalf("expected cooldown, got %v", err)
	}
	h.ticks(10)
	if mob.Hits() != 1 {
		t.Fatalf("mob hits: got %d want 1", mob.Hits())
	}
	if got := h.rec.destroyed(NameFireBlast); len(got) != 1 || got[0] != protocol.ReasonHit {
		t.Fatalf("destroy reasons: %v", got)
	}
}

func TestFireBlast_EqualBlastsCancel(t *testing.T) {
	h := newHarness(t, tuning.Defaults().Abilities)
	ana := player("ana", geom.V(0, 64, 0), geom.V(1, 0, 0), NameFireBlast)
	bo := player("bo", geom.V(7, 64, 0), geom.V(-1, 0, 0), NameFireBlast)
	h.e.Activate(ana, NameFireBlast, ability.Attack)
	h.e.Activate(bo, NameFireBlast, ability.Attack)
	h.ticks(5)

	got := h.rec.destroyed(NameFireBlast)
	if len(got) != 2 || got[0] != protocol.ReasonCollision || got[1] != protocol.ReasonCollision {
		t.Fatalf("destroy reasons: %v", got)
	}
}

func TestFireBlast_ChargesWhileSneaking(t *testing.T) {
	tune := tuning.Defaults().Abilities
	tune.FireBlast.ChargeTicks = 5
	h := newHarness(t, tune)
	ana := player("ana", geom.V(0, 64, 0), geom.V(1, 0, 0), NameFireBlast)
	ana.SetSneaking(true)

	hd, err := h.e.Activate(ana, NameFireBlast, ability.Sneak)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	h.ticks(5)
	inst, ok := h.e.Instance(hd)
	if !ok {
		t.Fatalf("charging blast removed")
	}
	b := inst.(*fireBlast)
	if !b.charging || !b.charge.Full() {
		t.Fatalf("expected full charge while sneaking")
	}
	ana.SetSneaking(false)
	h.ticks(1)
	if b.charging || b.ChargeFactor() != tune.FireBlast.MaxCharge {
		t.Fatalf("launch: charging=%v factor=%v", b.charging, b.ChargeFactor())
	}
}

func TestFireBlast_ChargedExplodesOnImpact(t *testing.T) {
	tune := tuning.Defaults().Abilities
	tune.FireBlast.ChargeTicks = 2
	h := newHarness(t, tune)
	near := memworld.NewMob("m1", geom.V(8, 65, 0), 20)
	behind := memworld.NewMob("m2", geom.V(9, 65, 0), 20)
	h.world.AddEntity(near)
	h.world.AddEntity(behind)
	ana := player("ana", geom.V(0, 64, 0), geom.V(1, 0, 0), NameFireBlast)
	ana.SetSneaking(true)
	h.e.Activate(ana, NameFireBlast, ability.Sneak)
	h.ticks(2)
	ana.SetSneaking(false)
	h.ticks(10)

	if near.Hits() != 1 || behind.Hits() != 1 {
		t.Fatalf("explosion hits: near=%d behind=%d", near.Hits(), behind.Hits())
	}
}

func TestFireBlast_MergedChargedBlastsExplodeOnce(t *testing.T) {
	cfg := tuning.Defaults().Abilities.FireBlast
	world := memworld.New()
	mob := memworld.NewMob("m1", geom.V(1, 64, 0), 20)
	world.AddEntity(mob)
	env := &ability.Env{World: world}

	d := FireBlast(cfg)
	a := d.New(memworld.NewPlayer("ana", geom.V(-5, 64, 0))).(*fireBlast)
	b := d.New(memworld.NewPlayer("bo", geom.V(5, 64, 0))).(*fireBlast)
	a.factor, b.factor = cfg.MaxCharge, cfg.MaxCharge

	c := &ability.Collision{
		Self:          a,
		Other:         b,
		SelfCollider:  geom.Sphere{Center: geom.V(0, 64.5, 0), Radius: 1},
		OtherCollider: geom.Sphere{Center: geom.V(2, 64.5, 0), Radius: 1},
		RemoveSelf:    true,
		RemoveOther:   true,
		Merged:        true,
	}
	a.OnCollision(env, c)
	b.OnCollision(env, &ability.Collision{Self: b, Other: a, Merged: true, SelfCollider: c.OtherCollider, OtherCollider: c.SelfCollider})

	if mob.Hits() != 1 {
		t.Fatalf("merged explosion hits: got %d want 1", mob.Hits())
	}
	if !a.exploded || !b.exploded {
		t.Fatalf("both blasts must be spent")
	}
}

func TestAirShield_BlocksBlastAndSurvives(t *testing.T) {
	h := newHarness(t, tuning.Defaults().Abilities)
	ana := player("ana", geom.V(0, 64, 0), geom.V(1, 0, 0), NameFireBlast)
	bo := player("bo", geom.V(6, 64, 0), geom.V(-1, 0, 0), NameAirShield)
	bo.SetSneaking(true)

	shield, err := h.e.Activate(bo, NameAirShield, ability.Sneak)
	if err != nil {
		t.Fatalf("shield: %v", err)
	}
	h.e.Activate(ana, NameFireBlast, ability.Attack)
	h.ticks(6)

	if got := h.rec.destroyed(NameFireBlast); len(got) != 1 || got[0] != protocol.ReasonCollision {
		t.Fatalf("blast destroy reasons: %v", got)
	}
	if _, ok := h.e.Instance(shield); !ok {
		t.Fatalf("shield removed by collision")
	}

	bo.SetSneaking(false)
	h.ticks(1)
	if got := h.rec.destroyed(NameAirShield); len(got) != 1 || got[0] != protocol.ReasonPolicy {
		t.Fatalf("shield destroy reasons: %v", got)
	}
	if _, err := h.e.Activate(bo, NameAirShield, ability.Sneak); !errors.Is(err, scheduler.ErrOnCooldown) {
		t.Fatalf("expected shield cooldown, got %v", err)
	}
}

func TestEarthWall_RaisesAndSinks(t *testing.T) {
	tune := tuning.Defaults().Abilities
	tune.EarthWall.DurationTicks = 10
	h := newHarness(t, tune)
	ana := player("ana", geom.V(0.5, 64, 0.5), geom.V(1, 0, 0), NameEarthWall)

	if _, err := h.e.Activate(ana, NameEarthWall, ability.Attack); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if n := h.world.BlockCount(); n != 9 {
		t.Fatalf("wall blocks: got %d want 9", n)
	}
	h.ticks(10)
	if n := h.world.BlockCount(); n != 9 {
		t.Fatalf("wall sank early: %d blocks", n)
	}
	h.ticks(1)
	if n := h.world.BlockCount(); n != 0 {
		t.Fatalf("wall still standing: %d blocks", n)
	}
}

func TestEarthWall_SinksWhenOwnerLeaves(t *testing.T) {
	h := newHarness(t, tuning.Defaults().Abilities)
	ana := player("ana", geom.V(0.5, 64, 0.5), geom.V(1, 0, 0), NameEarthWall)
	h.e.Activate(ana, NameEarthWall, ability.Attack)
	h.ticks(1)
	h.e.Leave(ana)
	h.ticks(1)
	if n := h.world.BlockCount(); n != 0 {
		t.Fatalf("wall still standing after leave: %d blocks", n)
	}
}

func TestEarthWall_StopsBlast(t *testing.T) {
	h := newHarness(t, tuning.Defaults().Abilities)
	ana := player("ana", geom.V(0.5, 64, 0.5), geom.V(1, 0, 0), NameEarthWall)
	bo := player("bo", geom.V(8.3, 64, 0.5), geom.V(-1, 0, 0), NameFireBlast)
	wall, err := h.e.Activate(ana, NameEarthWall, ability.Attack)
	if err != nil {
		t.Fatalf("wall: %v", err)
	}
	h.e.Activate(bo, NameFireBlast, ability.Attack)
	h.ticks(6)

	if got := h.rec.destroyed(NameFireBlast); len(got) != 1 || got[0] != protocol.ReasonCollision {
		t.Fatalf("blast destroy reasons: %v", got)
	}
	if _, ok := h.e.Instance(wall); !ok {
		t.Fatalf("wall removed by collision")
	}
}

func TestFireWheel_HitsEachEntityOnce(t *testing.T) {
	h := newHarness(t, tuning.Defaults().Abilities)
	m1 := memworld.NewMob("m1", geom.V(3, 64, 0), 20)
	m2 := memworld.NewMob("m2", geom.V(6, 64, 0), 20)
	h.world.AddEntity(m1)
	h.world.AddEntity(m2)
	ana := player("ana", geom.V(0, 64, 0), geom.V(1, 0, 0), NameFireWheel)

	if _, err := h.e.Activate(ana, NameFireWheel, ability.Attack); err != nil {
		t.Fatalf("activate: %v", err)
	}
	h.ticks(20)
	if m1.Hits() != 1 || m2.Hits() != 1 {
		t.Fatalf("hits: m1=%d m2=%d", m1.Hits(), m2.Hits())
	}
}

func TestFireSpin_ComboFromInputs(t *testing.T) {
	h := newHarness(t, tuning.Defaults().Abilities)
	mob := memworld.NewMob("m1", geom.V(2, 64, 0), 20)
	h.world.AddEntity(mob)
	ana := player("ana", geom.V(0, 64, 0), geom.V(0, 0, -1), NameFireBlast)

	for _, m := range []ability.Activation{ability.Attack, ability.Attack, ability.Sneak} {
		if err := h.e.Input(ana, m); err != nil {
			t.Fatalf("input: %v", err)
		}
		h.e.Tick()
	}
	if n := h.rec.created(NameFireSpin); n != 1 {
		t.Fatalf("FireSpin created: got %d want 1", n)
	}
	h.ticks(15)
	if mob.Hits() != 1 {
		t.Fatalf("spin hits: got %d want 1", mob.Hits())
	}
	if got := h.rec.destroyed(NameFireSpin); len(got) != 1 || got[0] != protocol.ReasonFinished {
		t.Fatalf("spin destroy reasons: %v", got)
	}
}

func TestFireSpinSequence(t *testing.T) {
	seq, err := FireSpinSequence()
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if seq.Combo() != NameFireSpin || seq.Len() != 3 {
		t.Fatalf("sequence: %s len %d", seq.Combo(), seq.Len())
	}
}

func TestRegister_Subset(t *testing.T) {
	e, err := engine.New(engine.Config{World: memworld.New()})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer e.Close()
	if err := Register(e, tuning.Defaults().Abilities, []string{NameAirShield, NameFireSpin}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if names := e.Abilities().Names(); len(names) != 2 {
		t.Fatalf("abilities: %v", names)
	}
	// FireBlast is missing, so the combo was skipped and can be added later.
	if err := e.Register(FireBlast(tuning.Defaults().Abilities.FireBlast)); err != nil {
		t.Fatalf("register FireBlast: %v", err)
	}
	spin, _ := FireSpinSequence()
	if err := e.RegisterSequence(spin); err != nil {
		t.Fatalf("combo: %v", err)
	}

	if err := Register(e, tuning.Defaults().Abilities, []string{"Lightning"}); !errors.Is(err, ErrUnknownAbility) {
		t.Fatalf("expected ErrUnknownAbility, got %v", err)
	}
}
