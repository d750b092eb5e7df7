package memworld

import (
	"sync"

	"github.com/google/uuid"

	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
)

// Mob is a passive target entity with health.
type Mob struct {
	mu sync.Mutex

	id     string
	box    geom.AABB
	health float64
	hits   []uuid.UUID
}

func NewMob(id string, center geom.Vec3, health float64) *Mob {
	return &Mob{id: id, box: geom.Box(center.Add(geom.V(0, 0.5, 0)), geom.V(0.4, 0.5, 0.4)), health: health}
}

func (m *Mob) EntityID() string { return m.id }

func (m *Mob) Bounds() geom.AABB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.box
}

func (m *Mob) Damage(source uuid.UUID, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health -= amount
	m.hits = append(m.hits, source)
}

func (m *Mob) Health() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

// Hits is the number of damage calls received.
func (m *Mob) Hits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}

var (
	_ host.Entity     = (*Mob)(nil)
	_ host.Damageable = (*Mob)(nil)
)
