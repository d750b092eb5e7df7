package ability

import (
	"fmt"

	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
)

// Handle identifies a live instance within one engine.
type Handle uint64

func (h Handle) String() string { return fmt.Sprintf("I%06d", uint64(h)) }

type UpdateResult uint8

const (
	Continue UpdateResult = iota
	Remove
)

// Instance is one running activation of an ability.
//
// Implementations embed Core, which carries the owner, description and handle.
// Optional behavior is added by also implementing Policied, Collidable, Charged
// or EntityHitter.
type Instance interface {
	Base() *Core
	// Activate runs once when the instance is created; false rejects the activation.
	Activate(env *Env, method Activation) bool
	Step(env *Env) UpdateResult
	// Colliders are the volumes the instance occupies this tick.
	Colliders() []geom.Collider
	// OnDestroy runs exactly once when the instance is removed.
	OnDestroy(env *Env)
}

// Core is the shared state every instance embeds.
type Core struct {
	user    host.User
	desc    *Description
	handle  Handle
	created uint64
}

func NewCore(user host.User, desc *Description) Core {
	return Core{user: user, desc: desc}
}

func (c *Core) Base() *Core { return c }

func (c *Core) User() host.User { return c.user }

func (c *Core) Description() *Description { return c.desc }

func (c *Core) Handle() Handle { return c.handle }

// CreatedTick is the tick the instance was activated on.
func (c *Core) CreatedTick() uint64 { return c.created }

// Bind is called by the scheduler when the instance is accepted.
func (c *Core) Bind(h Handle, tick uint64) {
	c.handle = h
	c.created = tick
}

// Owner is the temporal owner key for mutations created by this instance.
func (c *Core) Owner() string { return c.handle.String() }

// Policy decides whether an instance must be removed before it steps.
type Policy interface {
	ShouldRemove(env *Env, inst Instance) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(env *Env, inst Instance) bool

func (f PolicyFunc) ShouldRemove(env *Env, inst Instance) bool { return f(env, inst) }

type Policied interface {
	RemovalPolicy() Policy
}

// Collidable instances take part in instance-vs-instance collision resolution.
// OnCollision may override the default votes in c.
type Collidable interface {
	OnCollision(env *Env, c *Collision)
}

// Charged instances carry a strength compared by the default collision rule.
type Charged interface {
	ChargeFactor() float64
}

type HitMode uint8

const (
	// HitSingle removes the instance on its first accepted entity hit.
	HitSingle HitMode = iota + 1
	// HitMulti hits every entity once.
	HitMulti
)

// EntityHitter instances damage entities their colliders touch.
// OnEntityHit returns false to ignore the entity.
type EntityHitter interface {
	HitMode() HitMode
	OnEntityHit(env *Env, e host.Entity) bool
}

// Collision is the per-tick view of an instance pair from Self's perspective.
type Collision struct {
	Self, Other   Instance
	SelfCollider  geom.Collider
	OtherCollider geom.Collider
	RemoveSelf    bool
	RemoveOther   bool
	// Merged is set by the default charge rule when both sides carry equal charge.
	Merged bool
}
