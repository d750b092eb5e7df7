// Package geom implements the collider shapes used by abilities and the
// pairwise intersection tests between them.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the tolerance used by contact tests that would otherwise need
// exact floating point equality (ray-ray, point on ray, SAT axis padding).
const Epsilon = 1e-6

type Vec3 = mgl64.Vec3

// V is shorthand for building a Vec3.
func V(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func clampVec(p, lo, hi Vec3) Vec3 {
	return Vec3{
		mgl64.Clamp(p[0], lo[0], hi[0]),
		mgl64.Clamp(p[1], lo[1], hi[1]),
		mgl64.Clamp(p[2], lo[2], hi[2]),
	}
}

func minVec(a, b Vec3) Vec3 {
	return Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])}
}

func maxVec(a, b Vec3) Vec3 {
	return Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])}
}

func absVec(a Vec3) Vec3 {
	return Vec3{math.Abs(a[0]), math.Abs(a[1]), math.Abs(a[2])}
}

// lessVec orders vectors lexicographically. Used to put same-kind operands in a
// canonical order so that Intersects(a, b) and Intersects(b, a) run identical math.
func lessVec(a, b Vec3) int {
	for i := 0; i < 3; i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}
