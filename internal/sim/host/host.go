// Package host declares what the ability engine needs from the game it runs in:
// a world with block state and entities, a cooldown oracle, an event bus and the
// users driving abilities.
package host

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/geom"
)

// State is an opaque block state ("" is air).
type State string

// Location is an integer block coordinate.
type Location struct {
	X, Y, Z int
}

func (l Location) String() string { return fmt.Sprintf("%d,%d,%d", l.X, l.Y, l.Z) }

// Center is the middle of the block.
func (l Location) Center() geom.Vec3 {
	return geom.V(float64(l.X)+0.5, float64(l.Y)+0.5, float64(l.Z)+0.5)
}

// Box is the block's unit cube.
func (l Location) Box() geom.AABB {
	return geom.NewAABB(geom.V(float64(l.X), float64(l.Y), float64(l.Z)), geom.V(float64(l.X+1), float64(l.Y+1), float64(l.Z+1)))
}

func (l Location) Add(dx, dy, dz int) Location { return Location{X: l.X + dx, Y: l.Y + dy, Z: l.Z + dz} }

// LocationOf returns the block containing p.
func LocationOf(p geom.Vec3) Location {
	return Location{X: int(math.Floor(p[0])), Y: int(math.Floor(p[1])), Z: int(math.Floor(p[2]))}
}

// Entity is anything abilities can hit.
type Entity interface {
	EntityID() string
	Bounds() geom.AABB
}

// Damageable entities take damage from ability hits.
type Damageable interface {
	Damage(source uuid.UUID, amount float64)
}

// User is a player or NPC that owns ability instances.
type User interface {
	ID() uuid.UUID
	Name() string
	Location() geom.Vec3
	// Direction is the unit look vector.
	Direction() geom.Vec3
	Sneaking() bool
	Dead() bool
	InLiquid() bool
	// SelectedAbility is the ability bound to the user's current slot ("" when none).
	SelectedAbility() string
	Slot() int
}

// EntityIDOf is the entity id a user appears as in World.EntitiesNear.
func EntityIDOf(u User) string { return u.ID().String() }

// World is the block and entity store the engine mutates and queries.
type World interface {
	EntitiesNear(box geom.AABB) []Entity
	LocationState(loc Location) State
	SetLocationState(loc Location, s State)
}

// Cooldowns is the cooldown oracle consulted before every activation.
type Cooldowns interface {
	OnCooldown(user uuid.UUID, ability string) bool
	AddCooldown(user uuid.UUID, ability string, ticks uint64)
}

// Clock reports the tick the engine is currently running.
type Clock interface {
	Tick() uint64
}

// EventPoster receives notifications and veto proposals. For proposals
// (ev.Proposal) a false return cancels the action; for notifications the
// return value is ignored.
type EventPoster interface {
	Post(ev protocol.Event) bool
}

type PosterFunc func(ev protocol.Event) bool

func (f PosterFunc) Post(ev protocol.Event) bool { return f(ev) }

// AllowAll accepts every proposal and discards notifications.
var AllowAll EventPoster = PosterFunc(func(protocol.Event) bool { return true })

// NoCooldowns never reports a cooldown.
type NoCooldowns struct{}

func (NoCooldowns) OnCooldown(uuid.UUID, string) bool     { return false }
func (NoCooldowns) AddCooldown(uuid.UUID, string, uint64) {}
