package memworld

import (
	"testing"

	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
)

func TestWorld_Blocks(t *testing.T) {
	w := New()
	w.Fill(host.Location{X: 0}, host.Location{X: 2, Y: 1}, "STONE")
	if w.BlockCount() != 6 {
		t.Fatalf("BlockCount=%d", w.BlockCount())
	}
	w.SetLocationState(host.Location{X: 1}, "")
	if w.LocationState(host.Location{X: 1}) != "" || w.BlockCount() != 5 {
		t.Fatalf("air write should delete")
	}
}

func TestWorld_EntitiesNear(t *testing.T) {
	w := New()
	p := NewPlayer("ana", geom.V(0, 0, 0))
	m := NewMob("mob-1", geom.V(5, 0, 0), 10)
	far := NewMob("mob-2", geom.V(50, 0, 0), 10)
	w.AddEntity(p)
	w.AddEntity(m)
	w.AddEntity(far)

	got := w.EntitiesNear(geom.Box(geom.V(2.5, 1, 0), geom.V(3, 1, 1)))
	if len(got) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(got))
	}
	if got[0].EntityID() > got[1].EntityID() {
		t.Fatalf("entities not ordered by id")
	}
	w.RemoveEntity("mob-1")
	if _, ok := w.Entity("mob-1"); ok {
		t.Fatalf("entity not removed")
	}
}

func TestPlayer_State(t *testing.T) {
	p := NewPlayer("ana", geom.V(1, 2, 3))
	p.Bind(2, "FireBlast")
	if p.SelectedAbility() != "" {
		t.Fatalf("slot 0 should be empty")
	}
	p.SelectSlot(2)
	p.SelectSlot(42)
	if p.Slot() != 2 || p.SelectedAbility() != "FireBlast" {
		t.Fatalf("selection %d %q", p.Slot(), p.SelectedAbility())
	}
	p.Look(geom.V(0, 0, 0))
	if p.Direction() != geom.V(0, 0, 1) {
		t.Fatalf("zero look should be ignored")
	}
	p.Look(geom.V(3, 0, 4))
	if d := p.Direction(); d.Sub(geom.V(0.6, 0, 0.8)).Len() > 1e-9 {
		t.Fatalf("direction %v", d)
	}
	p.Damage(p.ID(), 25)
	if !p.Dead() || p.Health() != 0 {
		t.Fatalf("player should be dead")
	}
	if p.EntityID() != host.EntityIDOf(p) {
		t.Fatalf("entity id must match user id")
	}
}
