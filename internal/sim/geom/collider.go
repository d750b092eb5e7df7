package geom

import "fmt"

type Kind uint8

// Kind order matters: Intersects swaps operands so that the lower kind comes first.
const (
	KindAABB Kind = iota + 1
	KindOBB
	KindSphere
	KindDisk
	KindRay
)

func (k Kind) String() string {
	switch k {
	case KindAABB:
		return "AABB"
	case KindOBB:
		return "OBB"
	case KindSphere:
		return "SPHERE"
	case KindDisk:
		return "DISK"
	case KindRay:
		return "RAY"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// Collider is the closed set of bounding volumes: AABB, OBB, Sphere, Disk and Ray.
// All implementations are value types; nothing outside this package can add one.
type Collider interface {
	Kind() Kind
	Position() Vec3
	HalfExtents() Vec3
	// Degenerate reports a zero-extent shape. Degenerate colliders never intersect anything.
	Degenerate() bool

	sealed()
}

// Contains reports whether p lies inside c (boundary inclusive). Degenerate
// colliders contain nothing.
func Contains(c Collider, p Vec3) bool {
	if c == nil || c.Degenerate() {
		return false
	}
	switch c := c.(type) {
	case AABB:
		return c.Contains(p)
	case OBB:
		return c.Contains(p)
	case Sphere:
		return c.Contains(p)
	case Disk:
		return c.Contains(p)
	case Ray:
		return c.Contains(p)
	}
	return false
}

// ClosestPoint returns the point of c nearest to p. For a Disk the result is the
// box-clamped projection of the sphere's closest point, which is exact whenever
// p lies inside either part.
func ClosestPoint(c Collider, p Vec3) Vec3 {
	switch c := c.(type) {
	case AABB:
		return c.ClosestPoint(p)
	case OBB:
		return c.ClosestPoint(p)
	case Sphere:
		return c.ClosestPoint(p)
	case Disk:
		return c.ClosestPoint(p)
	case Ray:
		return c.ClosestPoint(p)
	}
	return p
}

// Translated returns a copy of c moved by offset.
func Translated(c Collider, offset Vec3) Collider {
	switch c := c.(type) {
	case AABB:
		return c.Translate(offset)
	case OBB:
		return c.Translate(offset)
	case Sphere:
		return c.Translate(offset)
	case Disk:
		return c.Translate(offset)
	case Ray:
		return c.Translate(offset)
	}
	return c
}

// At returns a copy of c whose Position is p.
func At(c Collider, p Vec3) Collider {
	if c == nil {
		return nil
	}
	return Translated(c, p.Sub(c.Position()))
}

// Bounds returns the smallest AABB enclosing c.
func Bounds(c Collider) AABB {
	switch c := c.(type) {
	case AABB:
		return c
	case OBB:
		return c.Bounds()
	case Sphere:
		return c.Bounds()
	case Disk:
		return c.Bounds()
	case Ray:
		return c.Bounds()
	}
	return Dummy()
}

// BoundsAll returns the union of the bounds of every non-degenerate collider in cs.
// ok is false when there is none.
func BoundsAll(cs []Collider) (box AABB, ok bool) {
	for _, c := range cs {
		if c == nil || c.Degenerate() {
			continue
		}
		b := Bounds(c)
		if !ok {
			box, ok = b, true
			continue
		}
		box = box.Union(b)
	}
	return box, ok
}
