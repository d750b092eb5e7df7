// Package cooldown is a tick-based cooldown table implementing host.Cooldowns.
package cooldown

import (
	"sync"

	"github.com/google/uuid"

	"voxelbend.ai/internal/sim/host"
)

type key struct {
	user    uuid.UUID
	ability string
}

type Table struct {
	mu    sync.Mutex
	clock host.Clock
	until map[key]uint64
}

func New(clock host.Clock) *Table {
	return &Table{clock: clock, until: map[key]uint64{}}
}

func (t *Table) OnCooldown(user uuid.UUID, ability string) bool {
	return t.Remaining(user, ability) > 0
}

// AddCooldown starts a cooldown of ticks from now. A longer running cooldown is kept.
func (t *Table) AddCooldown(user uuid.UUID, ability string, ticks uint64) {
	if ticks == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key{user: user, ability: ability}
	until := t.clock.Tick() + ticks
	if until > t.until[k] {
		t.until[k] = until
	}
}

// Remaining is the number of ticks left, 0 when ready.
func (t *Table) Remaining(user uuid.UUID, ability string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Tick()
	until := t.until[key{user: user, ability: ability}]
	if until <= now {
		return 0
	}
	return until - now
}

// Clear drops every cooldown of user.
func (t *Table) Clear(user uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.until {
		if k.user == user {
			delete(t.until, k)
		}
	}
}

// Prune drops expired entries and returns how many are left.
func (t *Table) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Tick()
	for k, until := range t.until {
		if until <= now {
			delete(t.until, k)
		}
	}
	return len(t.until)
}

var _ host.Cooldowns = (*Table)(nil)
