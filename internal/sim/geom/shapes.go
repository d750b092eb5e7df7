package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned box. The zero value is the dummy sentinel.
type AABB struct {
	Min, Max Vec3
}

// Dummy is the "no collider yet" sentinel. It never intersects anything.
func Dummy() AABB { return AABB{} }

// NewAABB builds a box from two opposite corners in any order.
func NewAABB(a, b Vec3) AABB {
	return AABB{Min: minVec(a, b), Max: maxVec(a, b)}
}

// Box builds a box from its center and half extents.
func Box(center, half Vec3) AABB {
	half = absVec(half)
	return AABB{Min: center.Sub(half), Max: center.Add(half)}
}

func (AABB) Kind() Kind          { return KindAABB }
func (AABB) sealed()             {}
func (b AABB) Position() Vec3    { return b.Min.Add(b.Max).Mul(0.5) }
func (b AABB) HalfExtents() Vec3 { return b.Max.Sub(b.Min).Mul(0.5) }
func (b AABB) Degenerate() bool  { return b.Min == b.Max }

func (b AABB) Contains(p Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

func (b AABB) ClosestPoint(p Vec3) Vec3 { return clampVec(p, b.Min, b.Max) }

func (b AABB) Translate(d Vec3) AABB { return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)} }

func (b AABB) At(p Vec3) AABB { return b.Translate(p.Sub(b.Position())) }

func (b AABB) Union(o AABB) AABB { return AABB{Min: minVec(b.Min, o.Min), Max: maxVec(b.Max, o.Max)} }

// Grow pads the box by d on every side.
func (b AABB) Grow(d Vec3) AABB {
	d = absVec(d)
	return AABB{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// OBB is an oriented box. Axes holds the box's local unit axes as columns.
type OBB struct {
	Center  Vec3
	Extents Vec3
	Axes    mgl64.Mat3
}

func NewOBB(center, extents Vec3, rot mgl64.Mat3) OBB {
	return OBB{Center: center, Extents: absVec(extents), Axes: rot}
}

// OBBFromAABB returns the identity-oriented box covering b.
func OBBFromAABB(b AABB) OBB {
	return OBB{Center: b.Position(), Extents: b.HalfExtents(), Axes: mgl64.Ident3()}
}

// YawOBB builds a box rotated around the vertical axis by yaw radians.
func YawOBB(center, extents Vec3, yaw float64) OBB {
	return NewOBB(center, extents, mgl64.Rotate3DY(yaw))
}

func (OBB) Kind() Kind             { return KindOBB }
func (OBB) sealed()                {}
func (o OBB) Position() Vec3       { return o.Center }
func (o OBB) HalfExtents() Vec3    { return o.Extents }
func (o OBB) Degenerate() bool     { return o.Extents == (Vec3{}) }
func (o OBB) Axis(i int) Vec3      { return o.Axes.Col(i) }
func (o OBB) Translate(d Vec3) OBB { o.Center = o.Center.Add(d); return o }
func (o OBB) At(p Vec3) OBB        { o.Center = p; return o }

// Local maps a world-space point into the box's frame (box center at origin).
func (o OBB) Local(p Vec3) Vec3 { return o.LocalDir(p.Sub(o.Center)) }

// LocalDir maps a world-space direction into the box's frame.
func (o OBB) LocalDir(v Vec3) Vec3 {
	return Vec3{v.Dot(o.Axis(0)), v.Dot(o.Axis(1)), v.Dot(o.Axis(2))}
}

func (o OBB) Contains(p Vec3) bool {
	l := o.Local(p)
	for i := 0; i < 3; i++ {
		if math.Abs(l[i]) > o.Extents[i]+Epsilon {
			return false
		}
	}
	return true
}

func (o OBB) ClosestPoint(p Vec3) Vec3 {
	d := p.Sub(o.Center)
	out := o.Center
	for i := 0; i < 3; i++ {
		axis := o.Axis(i)
		dist := mgl64.Clamp(d.Dot(axis), -o.Extents[i], o.Extents[i])
		out = out.Add(axis.Mul(dist))
	}
	return out
}

func (o OBB) Bounds() AABB {
	var half Vec3
	for i := 0; i < 3; i++ {
		half = half.Add(absVec(o.Axis(i)).Mul(o.Extents[i]))
	}
	return Box(o.Center, half)
}

// Sphere is a ball. A non-positive radius is degenerate.
type Sphere struct {
	Center Vec3
	Radius float64
}

func (Sphere) Kind() Kind                { return KindSphere }
func (Sphere) sealed()                   {}
func (s Sphere) Position() Vec3          { return s.Center }
func (s Sphere) HalfExtents() Vec3       { return Vec3{s.Radius, s.Radius, s.Radius} }
func (s Sphere) Degenerate() bool        { return s.Radius <= 0 }
func (s Sphere) Translate(d Vec3) Sphere { s.Center = s.Center.Add(d); return s }
func (s Sphere) At(p Vec3) Sphere        { s.Center = p; return s }
func (s Sphere) Bounds() AABB            { return Box(s.Center, s.HalfExtents()) }

func (s Sphere) Contains(p Vec3) bool {
	return p.Sub(s.Center).LenSqr() <= s.Radius*s.Radius
}

func (s Sphere) ClosestPoint(p Vec3) Vec3 {
	d := p.Sub(s.Center)
	if d.LenSqr() <= s.Radius*s.Radius {
		return p
	}
	return s.Center.Add(d.Normalize().Mul(s.Radius))
}

// Disk is the intersection of a box and a sphere sharing a region, e.g. a thin
// rotated box clipped to a circle.
type Disk struct {
	OBB    OBB
	Sphere Sphere
}

func NewDisk(obb OBB, sphere Sphere) Disk { return Disk{OBB: obb, Sphere: sphere} }

func (Disk) Kind() Kind             { return KindDisk }
func (Disk) sealed()                {}
func (d Disk) Position() Vec3       { return d.Sphere.Center }
func (d Disk) HalfExtents() Vec3    { return d.OBB.Extents }
func (d Disk) Degenerate() bool     { return d.OBB.Degenerate() || d.Sphere.Degenerate() }
func (d Disk) Contains(p Vec3) bool { return d.Sphere.Contains(p) && d.OBB.Contains(p) }

func (d Disk) ClosestPoint(p Vec3) Vec3 {
	if d.Contains(p) {
		return p
	}
	return d.OBB.ClosestPoint(d.Sphere.ClosestPoint(p))
}

func (d Disk) Translate(v Vec3) Disk {
	return Disk{OBB: d.OBB.Translate(v), Sphere: d.Sphere.Translate(v)}
}

func (d Disk) At(p Vec3) Disk { return d.Translate(p.Sub(d.Position())) }

func (d Disk) Bounds() AABB {
	a, b := d.OBB.Bounds(), d.Sphere.Bounds()
	return AABB{Min: maxVec(a.Min, b.Min), Max: minVec(a.Max, b.Max)}
}

// Ray is the segment from Origin to Origin+Direction; the length of Direction is the reach.
type Ray struct {
	Origin    Vec3
	Direction Vec3

	invDir Vec3
}

// NewRay precomputes the inverse direction. Zero components map to ±Inf.
func NewRay(origin, direction Vec3) Ray {
	return Ray{Origin: origin, Direction: direction, invDir: inverse(direction)}
}

func inverse(d Vec3) Vec3 {
	var inv Vec3
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			inv[i] = math.Copysign(math.Inf(1), d[i])
			continue
		}
		inv[i] = 1 / d[i]
	}
	return inv
}

func (Ray) Kind() Kind             { return KindRay }
func (Ray) sealed()                {}
func (r Ray) Position() Vec3       { return r.Origin }
func (r Ray) HalfExtents() Vec3    { return absVec(r.Direction).Mul(0.5) }
func (r Ray) Degenerate() bool     { return r.Direction == (Vec3{}) }
func (r Ray) End() Vec3            { return r.Origin.Add(r.Direction) }
func (r Ray) Translate(d Vec3) Ray { r.Origin = r.Origin.Add(d); return r }
func (r Ray) At(p Vec3) Ray        { r.Origin = p; return r }
func (r Ray) Bounds() AABB         { return NewAABB(r.Origin, r.End()) }

// InvDir returns the component-wise inverse direction, computing it when the Ray
// was built as a literal instead of through NewRay.
func (r Ray) InvDir() Vec3 {
	if r.invDir == (Vec3{}) {
		return inverse(r.Direction)
	}
	return r.invDir
}

func (r Ray) ClosestPoint(p Vec3) Vec3 {
	lenSq := r.Direction.LenSqr()
	if lenSq == 0 {
		return r.Origin
	}
	t := mgl64.Clamp(p.Sub(r.Origin).Dot(r.Direction)/lenSq, 0, 1)
	return r.Origin.Add(r.Direction.Mul(t))
}

func (r Ray) Contains(p Vec3) bool {
	return r.ClosestPoint(p).Sub(p).LenSqr() <= Epsilon*Epsilon
}
