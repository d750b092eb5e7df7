package geom

import "math"

// Intersects reports whether a and b overlap. The result is symmetric and false
// whenever either side is nil or degenerate (including the Dummy sentinel).
func Intersects(a, b Collider) bool {
	if a == nil || b == nil || a.Degenerate() || b.Degenerate() {
		return false
	}
	if a.Kind() > b.Kind() {
		a, b = b, a
	}
	switch a := a.(type) {
	case AABB:
		switch b := b.(type) {
		case AABB:
			return aabbAABB(a, b)
		case OBB:
			return obbOBB(OBBFromAABB(a), b)
		case Sphere:
			return aabbSphere(a, b)
		case Disk:
			return aabbSphere(a, b.Sphere) && obbOBB(OBBFromAABB(a), b.OBB)
		case Ray:
			return rayAABB(b, a)
		}
	case OBB:
		switch b := b.(type) {
		case OBB:
			a, b = orderOBB(a, b)
			return obbOBB(a, b)
		case Sphere:
			return obbSphere(a, b)
		case Disk:
			return obbSphere(a, b.Sphere) && obbOBB(a, b.OBB)
		case Ray:
			return rayOBB(b, a)
		}
	case Sphere:
		switch b := b.(type) {
		case Sphere:
			return sphereSphere(a, b)
		case Disk:
			return sphereSphere(b.Sphere, a) && obbSphere(b.OBB, a)
		case Ray:
			return raySphere(b, a)
		}
	case Disk:
		switch b := b.(type) {
		case Disk:
			a, b = orderDisk(a, b)
			return sphereSphere(a.Sphere, b.Sphere) && obbOBB(a.OBB, b.OBB)
		case Ray:
			return raySphere(b, a.Sphere) && rayOBB(b, a.OBB)
		}
	case Ray:
		if b, ok := b.(Ray); ok {
			a, b = orderRay(a, b)
			return rayRay(a, b)
		}
	}
	return false
}

func aabbAABB(a, b AABB) bool {
	return a.Min[0] <= b.Max[0] && a.Max[0] >= b.Min[0] &&
		a.Min[1] <= b.Max[1] && a.Max[1] >= b.Min[1] &&
		a.Min[2] <= b.Max[2] && a.Max[2] >= b.Min[2]
}

func aabbSphere(b AABB, s Sphere) bool {
	return s.Contains(b.ClosestPoint(s.Center))
}

func obbSphere(o OBB, s Sphere) bool {
	d := s.Center.Sub(o.ClosestPoint(s.Center))
	return d.Dot(d) <= s.Radius*s.Radius
}

func sphereSphere(a, b Sphere) bool {
	r := a.Radius + b.Radius
	return a.Center.Sub(b.Center).LenSqr() <= r*r
}

// obbOBB is the separating axis test over the 15 candidate axes, evaluated in a's frame.
func obbOBB(a, b OBB) bool {
	var r, absR [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = a.Axis(i).Dot(b.Axis(j))
			absR[i][j] = math.Abs(r[i][j]) + Epsilon
		}
	}
	t := a.Local(b.Center)
	ea, eb := a.Extents, b.Extents

	for i := 0; i < 3; i++ {
		ra := ea[i]
		rb := eb[0]*absR[i][0] + eb[1]*absR[i][1] + eb[2]*absR[i][2]
		if math.Abs(t[i]) > ra+rb {
			return false
		}
	}
	for j := 0; j < 3; j++ {
		ra := ea[0]*absR[0][j] + ea[1]*absR[1][j] + ea[2]*absR[2][j]
		rb := eb[j]
		if math.Abs(t[0]*r[0][j]+t[1]*r[1][j]+t[2]*r[2][j]) > ra+rb {
			return false
		}
	}
	// Cross products a_i x b_j.
	for i := 0; i < 3; i++ {
		i1, i2 := (i+1)%3, (i+2)%3
		for j := 0; j < 3; j++ {
			j1, j2 := (j+1)%3, (j+2)%3
			ra := ea[i1]*absR[i2][j] + ea[i2]*absR[i1][j]
			rb := eb[j1]*absR[i][j2] + eb[j2]*absR[i][j1]
			if math.Abs(t[i2]*r[i1][j]-t[i1]*r[i2][j]) > ra+rb {
				return false
			}
		}
	}
	return true
}

// rayAABB is the slab test clipped to the segment t in [0, 1]. An axis the ray is
// parallel to only constrains the origin; this keeps 0*Inf from turning into NaN.
func rayAABB(r Ray, b AABB) bool {
	inv := r.InvDir()
	tmin, tmax := 0.0, 1.0
	for i := 0; i < 3; i++ {
		if r.Direction[i] == 0 {
			if r.Origin[i] < b.Min[i] || r.Origin[i] > b.Max[i] {
				return false
			}
			continue
		}
		t0 := (b.Min[i] - r.Origin[i]) * inv[i]
		t1 := (b.Max[i] - r.Origin[i]) * inv[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return false
		}
	}
	return true
}

func rayOBB(r Ray, o OBB) bool {
	local := NewRay(o.Local(r.Origin), o.LocalDir(r.Direction))
	return rayAABB(local, Box(Vec3{}, o.Extents))
}

func raySphere(r Ray, s Sphere) bool {
	return s.Contains(r.ClosestPoint(s.Center))
}

// rayRay reports whether two segments come within Epsilon of each other.
func rayRay(a, b Ray) bool {
	p, q := closestSegmentPoints(a, b)
	return p.Sub(q).LenSqr() <= Epsilon*Epsilon
}

func closestSegmentPoints(a, b Ray) (Vec3, Vec3) {
	d1, d2 := a.Direction, b.Direction
	rv := a.Origin.Sub(b.Origin)
	aa, ee := d1.Dot(d1), d2.Dot(d2)
	f := d2.Dot(rv)

	var s, t float64
	switch {
	case aa == 0 && ee == 0:
		return a.Origin, b.Origin
	case aa == 0:
		t = clamp01(f / ee)
	default:
		c := d1.Dot(rv)
		if ee == 0 {
			s = clamp01(-c / aa)
			break
		}
		bb := d1.Dot(d2)
		denom := aa*ee - bb*bb
		if denom != 0 {
			s = clamp01((bb*f - c*ee) / denom)
		}
		t = (bb*s + f) / ee
		if t < 0 {
			t = 0
			s = clamp01(-c / aa)
		} else if t > 1 {
			t = 1
			s = clamp01((bb - c) / aa)
		}
	}
	return a.Origin.Add(d1.Mul(s)), b.Origin.Add(d2.Mul(t))
}

func clamp01(v float64) float64 { return math.Min(1, math.Max(0, v)) }

func orderOBB(a, b OBB) (OBB, OBB) {
	if c := lessVec(a.Center, b.Center); c > 0 || (c == 0 && lessVec(a.Extents, b.Extents) > 0) {
		return b, a
	}
	return a, b
}

func orderDisk(a, b Disk) (Disk, Disk) {
	if lessVec(a.Sphere.Center, b.Sphere.Center) > 0 {
		return b, a
	}
	return a, b
}

func orderRay(a, b Ray) (Ray, Ray) {
	if c := lessVec(a.Origin, b.Origin); c > 0 || (c == 0 && lessVec(a.Direction, b.Direction) > 0) {
		return b, a
	}
	return a, b
}
