package memworld

import (
	"sync"

	"github.com/google/uuid"

	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
)

const (
	playerHalfWidth = 0.3
	playerHeight    = 1.8
	hotbarSlots     = 9
)

// Player is a host.User that is also a hittable entity.
type Player struct {
	mu sync.RWMutex

	id     uuid.UUID
	name   string
	pos    geom.Vec3
	dir    geom.Vec3
	sneak  bool
	dead   bool
	liquid bool
	slot   int
	binds  [hotbarSlots]string
	health float64
}

func NewPlayer(name string, pos geom.Vec3) *Player {
	return &Player{id: uuid.New(), name: name, pos: pos, dir: geom.V(0, 0, 1), health: 20}
}

func (p *Player) ID() uuid.UUID    { return p.id }
func (p *Player) Name() string     { return p.name }
func (p *Player) EntityID() string { return p.id.String() }

func (p *Player) Location() geom.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pos
}

// Direction is the unit look vector.
func (p *Player) Direction() geom.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dir
}

func (p *Player) Sneaking() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sneak
}

func (p *Player) Dead() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dead
}

func (p *Player) InLiquid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.liquid
}

func (p *Player) Slot() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.slot
}

func (p *Player) SelectedAbility() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.binds[p.slot]
}

func (p *Player) Bounds() geom.AABB {
	pos := p.Location()
	return geom.NewAABB(
		geom.V(pos[0]-playerHalfWidth, pos[1], pos[2]-playerHalfWidth),
		geom.V(pos[0]+playerHalfWidth, pos[1]+playerHeight, pos[2]+playerHalfWidth),
	)
}

func (p *Player) Health() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

func (p *Player) Damage(_ uuid.UUID, amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health -= amount
	if p.health <= 0 {
		p.health = 0
		p.dead = true
	}
}

func (p *Player) MoveTo(pos geom.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pos
}

// Look points the player along dir. A zero vector is ignored.
func (p *Player) Look(dir geom.Vec3) {
	if dir.LenSqr() == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dir = dir.Normalize()
}

func (p *Player) SetSneaking(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sneak = v
}

func (p *Player) SetDead(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dead = v
}

func (p *Player) SetInLiquid(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.liquid = v
}

// Bind puts ability on a hotbar slot. Out-of-range slots are ignored.
func (p *Player) Bind(slot int, ability string) {
	if slot < 0 || slot >= hotbarSlots {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.binds[slot] = ability
}

func (p *Player) SelectSlot(slot int) {
	if slot < 0 || slot >= hotbarSlots {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slot = slot
}

var (
	_ host.User       = (*Player)(nil)
	_ host.Entity     = (*Player)(nil)
	_ host.Damageable = (*Player)(nil)
)
