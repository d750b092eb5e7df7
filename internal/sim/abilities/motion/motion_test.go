package motion

import (
	"math"
	"testing"

	"voxelbend.ai/internal/sim/geom"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestStream_AdvanceStopsAtRange(t *testing.T) {
	s := NewStream(geom.V(0, 0, 0), geom.V(0, 0, 10), 1, 3.5)
	n := 0
	for s.Advance() {
		n++
		if n > 10 {
			t.Fatalf("stream never left range")
		}
	}
	if n != 3 {
		t.Fatalf("in-range advances: got %d want 3", n)
	}
	if !near(s.Travelled(), 3.5) || !near(s.Position[2], 3.5) {
		t.Fatalf("final position %v travelled %v", s.Position, s.Travelled())
	}
	if s.Advance() {
		t.Fatalf("advance past range")
	}
}

func TestStream_SweptCoversLastStep(t *testing.T) {
	s := NewStream(geom.V(0, 0, 0), geom.V(1, 0, 0), 2, 10)
	s.Advance()
	s.Advance()
	r := s.Swept()
	if r.Origin != geom.V(2, 0, 0) || r.End() != geom.V(4, 0, 0) {
		t.Fatalf("swept segment %v -> %v", r.Origin, r.End())
	}
	// A thin wall between 2.9 and 3.1 is missed by the head but caught by the sweep.
	wall := geom.NewAABB(geom.V(2.9, -1, -1), geom.V(3.1, 1, 1))
	if geom.Intersects(s.Head(0.5), wall) {
		t.Fatalf("head unexpectedly inside wall")
	}
	if !geom.Intersects(r, wall) {
		t.Fatalf("sweep missed wall")
	}
}

func TestStream_ZeroDirection(t *testing.T) {
	s := NewStream(geom.V(1, 2, 3), geom.Vec3{}, 1, 10)
	if s.Advance() {
		t.Fatalf("zero-direction stream advanced")
	}
}

func TestWheel_DiskFacesTravel(t *testing.T) {
	w := NewWheel(geom.V(0, 64, 0), geom.V(1, 0.5, 0), 1, 10, 1.5)
	if w.Direction[1] != 0 {
		t.Fatalf("wheel direction must be horizontal: %v", w.Direction)
	}
	d := w.Disk()
	if d.Degenerate() {
		t.Fatalf("degenerate disk")
	}
	center := d.Position()
	// Along travel the disk reaches its radius; sideways it is only half its thickness.
	if !geom.Contains(d, center.Add(geom.V(1.4, 0, 0))) {
		t.Fatalf("disk should extend along travel")
	}
	if geom.Contains(d, center.Add(geom.V(0, 0, 0.5))) {
		t.Fatalf("disk should be thin across travel")
	}
}

func TestCharge_Factor(t *testing.T) {
	c := NewCharge(10, 1.5)
	if c.Factor() != 1 {
		t.Fatalf("uncharged factor %v", c.Factor())
	}
	for i := 0; i < 5; i++ {
		c.Hold()
	}
	if !near(c.Factor(), 1.25) {
		t.Fatalf("half factor %v", c.Factor())
	}
	for i := 0; i < 20; i++ {
		c.Hold()
	}
	if !c.Full() || !near(c.Factor(), 1.5) {
		t.Fatalf("full factor %v", c.Factor())
	}
	if NewCharge(0, 0.5).Factor() != 1 {
		t.Fatalf("max below 1 must clamp")
	}
}

func TestFlatAndYaw(t *testing.T) {
	if _, ok := Flat(geom.V(0, 1, 0)); ok {
		t.Fatalf("vertical direction has no flat component")
	}
	f, ok := Flat(geom.V(3, 7, 4))
	if !ok || !near(f.Len(), 1) || f[1] != 0 {
		t.Fatalf("flat: %v", f)
	}
	if !near(YawOf(geom.V(0, 0, 1)), 0) || !near(YawOf(geom.V(1, 0, 0)), math.Pi/2) {
		t.Fatalf("yaw")
	}
}
