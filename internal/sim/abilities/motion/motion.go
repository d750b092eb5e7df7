// Package motion holds the movement building blocks sample abilities compose:
// a straight stream, a rolling wheel and a sneak charge.
package motion

import (
	"math"

	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
)

// Stream moves a point along a fixed direction at Speed blocks per tick until it
// has travelled Range.
type Stream struct {
	Origin    geom.Vec3
	Position  geom.Vec3
	Direction geom.Vec3 // unit
	Speed     float64
	Range     float64

	prev      geom.Vec3
	travelled float64
}

// NewStream normalizes dir. A zero direction yields a stream that never moves.
func NewStream(origin, dir geom.Vec3, speed, rng float64) *Stream {
	if dir.LenSqr() > 0 {
		dir = dir.Normalize()
	}
	return &Stream{Origin: origin, Position: origin, prev: origin, Direction: dir, Speed: speed, Range: rng}
}

// Advance moves the stream one tick and reports whether it is still in range.
func (s *Stream) Advance() bool {
	step := math.Min(s.Speed, s.Range-s.travelled)
	if step <= 0 || s.Direction.LenSqr() == 0 {
		return false
	}
	s.prev = s.Position
	s.Position = s.Position.Add(s.Direction.Mul(step))
	s.travelled += step
	return s.travelled < s.Range
}

func (s *Stream) Travelled() float64 { return s.travelled }

func (s *Stream) Location() host.Location { return host.LocationOf(s.Position) }

// Head is the stream's current volume.
func (s *Stream) Head(radius float64) geom.Sphere {
	return geom.Sphere{Center: s.Position, Radius: radius}
}

// Swept is the segment covered by the last Advance, so a fast stream cannot
// tunnel through a thin target.
func (s *Stream) Swept() geom.Ray {
	return geom.NewRay(s.prev, s.Position.Sub(s.prev))
}

// Wheel is a stream carrying an upright disk whose face is perpendicular to
// the direction of travel.
type Wheel struct {
	*Stream
	Radius    float64
	Thickness float64
}

func NewWheel(origin, dir geom.Vec3, speed, rng, radius float64) *Wheel {
	flat := geom.V(dir[0], 0, dir[2])
	return &Wheel{Stream: NewStream(origin, flat, speed, rng), Radius: radius, Thickness: 0.25}
}

func (w *Wheel) Yaw() float64 { return YawOf(w.Direction) }

// Disk is the wheel's volume: a thin yawed box clipped to a sphere.
func (w *Wheel) Disk() geom.Disk {
	center := w.Position.Add(geom.V(0, w.Radius, 0))
	box := geom.YawOBB(center, geom.V(w.Thickness/2, w.Radius, w.Radius), w.Yaw())
	return geom.NewDisk(box, geom.Sphere{Center: center, Radius: w.Radius})
}

// Charge grows from 1 to Max over Ticks of holding.
type Charge struct {
	Ticks uint64
	Max   float64

	held uint64
}

func NewCharge(ticks uint64, maxFactor float64) *Charge {
	if maxFactor < 1 {
		maxFactor = 1
	}
	return &Charge{Ticks: ticks, Max: maxFactor}
}

// Hold adds one tick of charge.
func (c *Charge) Hold() {
	if c.held < c.Ticks {
		c.held++
	}
}

func (c *Charge) Full() bool { return c.held >= c.Ticks }

// Factor is 1 uncharged and Max when full.
func (c *Charge) Factor() float64 {
	if c.Ticks == 0 {
		return c.Max
	}
	return 1 + (c.Max-1)*float64(c.held)/float64(c.Ticks)
}

// EyeHeight is the height of a user's view above their feet.
const EyeHeight = 1.62

func Eye(u host.User) geom.Vec3 { return u.Location().Add(geom.V(0, EyeHeight, 0)) }

// Flat drops the vertical component of dir and normalizes the rest. ok is false
// when dir points straight up or down.
func Flat(dir geom.Vec3) (flat geom.Vec3, ok bool) {
	flat = geom.V(dir[0], 0, dir[2])
	if flat.LenSqr() == 0 {
		return geom.Vec3{}, false
	}
	return flat.Normalize(), true
}

// YawOf is the rotation around the vertical axis that maps local +Z onto dir.
func YawOf(dir geom.Vec3) float64 { return math.Atan2(dir[0], dir[2]) }
