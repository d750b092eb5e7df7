// Package memworld is an in-memory host world: a sparse block map plus a set of
// entities. It backs the server binary and the engine tests.
package memworld

import (
	"sort"
	"sync"

	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/host"
)

type World struct {
	mu       sync.RWMutex
	blocks   map[host.Location]host.State
	entities map[string]host.Entity
}

func New() *World {
	return &World{
		blocks:   map[host.Location]host.State{},
		entities: map[string]host.Entity{},
	}
}

func (w *World) LocationState(loc host.Location) host.State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.blocks[loc]
}

func (w *World) SetLocationState(loc host.Location, s host.State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s == "" {
		delete(w.blocks, loc)
		return
	}
	w.blocks[loc] = s
}

// Fill sets every block in the inclusive box [a, b] to s.
func (w *World) Fill(a, b host.Location, s host.State) {
	for x := min(a.X, b.X); x <= max(a.X, b.X); x++ {
		for y := min(a.Y, b.Y); y <= max(a.Y, b.Y); y++ {
			for z := min(a.Z, b.Z); z <= max(a.Z, b.Z); z++ {
				w.SetLocationState(host.Location{X: x, Y: y, Z: z}, s)
			}
		}
	}
}

// BlockCount is the number of non-air blocks.
func (w *World) BlockCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.blocks)
}

func (w *World) AddEntity(e host.Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entities[e.EntityID()] = e
}

func (w *World) RemoveEntity(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entities, id)
}

func (w *World) Entity(id string) (host.Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[id]
	return e, ok
}

// EntitiesNear returns the entities whose bounds overlap box, ordered by id.
func (w *World) EntitiesNear(box geom.AABB) []host.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []host.Entity
	for _, e := range w.entities {
		if overlaps(box, e.Bounds()) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

func overlaps(a, b geom.AABB) bool {
	for i := 0; i < 3; i++ {
		if a.Min[i] > b.Max[i] || a.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}
