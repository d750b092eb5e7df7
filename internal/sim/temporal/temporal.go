// Package temporal tracks temporary world mutations and guarantees each one is
// reverted exactly once, either when it expires or when it is reverted explicitly.
package temporal

import (
	"container/heap"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/host"
)

// Forever is a duration that never expires on its own.
const Forever uint64 = math.MaxUint64

var ErrVetoed = errors.New("mutation vetoed")

type Handle uint64

func (h Handle) String() string { return fmt.Sprintf("M%06d", uint64(h)) }

// Conflict decides what happens when a location already carries a live mutation.
type Conflict uint8

const (
	// RevertThenApply restores the old mutation first, then applies the new one on top of the restored state.
	RevertThenApply Conflict = iota
	// Replace drops the old mutation without restoring and inherits its prior state.
	Replace
)

func (c Conflict) String() string {
	switch c {
	case RevertThenApply:
		return "revert_then_apply"
	case Replace:
		return "replace"
	default:
		return fmt.Sprintf("conflict(%d)", uint8(c))
	}
}

// Mutation is a snapshot of one temporary change.
type Mutation struct {
	Handle      Handle
	Location    host.Location
	Prior       host.State
	State       host.State
	AppliedTick uint64
	ExpireTick  uint64 // Forever when it never expires
	Owner       string
	Reverted    bool

	index int
}

type options struct {
	owner    string
	conflict Conflict
}

type Option func(*options)

// WithOwner tags the mutation with the instance that created it.
func WithOwner(owner string) Option { return func(o *options) { o.owner = owner } }

func WithConflict(c Conflict) Option { return func(o *options) { o.conflict = c } }

type Config struct {
	Partition string
	World     host.World
	Events    host.EventPoster
	Clock     host.Clock
	Logger    *log.Logger
}

// Manager owns the location index. At most one live mutation exists per location.
// Not safe for concurrent use; it belongs to the partition's tick goroutine.
type Manager struct {
	cfg Config

	byLoc    map[host.Location]*Mutation
	byHandle map[Handle]*Mutation
	expiry   expiryQueue
	next     uint64
	lastTick uint64
}

func NewManager(cfg Config) *Manager {
	if cfg.Events == nil {
		cfg.Events = host.AllowAll
	}
	return &Manager{
		cfg:      cfg,
		byLoc:    map[host.Location]*Mutation{},
		byHandle: map[Handle]*Mutation{},
	}
}

func (m *Manager) tick() uint64 {
	if m.cfg.Clock != nil {
		return m.cfg.Clock.Tick()
	}
	return m.lastTick
}

func (m *Manager) logf(format string, args ...any) {
	if m.cfg.Logger != nil {
		m.cfg.Logger.Printf(format, args...)
	}
}

// Apply writes state at loc for duration ticks. A mutation applied at tick N with
// duration D is reverted by the sweep of tick N+D.
func (m *Manager) Apply(tick uint64, loc host.Location, state host.State, duration uint64, opts ...Option) (Handle, error) {
	o := options{conflict: RevertThenApply}
	for _, opt := range opts {
		opt(&o)
	}
	m.lastTick = tick

	prop := protocol.NewProposal(protocol.ProposalMutation, tick)
	prop.Partition = m.cfg.Partition
	prop.Location = loc.String()
	prop.Instance = o.owner
	prop.Data = map[string]any{"state": string(state), "duration": duration}
	if !m.cfg.Events.Post(prop) {
		return 0, fmt.Errorf("apply %s at %s: %w", state, loc, ErrVetoed)
	}

	m.next++
	mu := &Mutation{
		Handle:      Handle(m.next),
		Location:    loc,
		State:       state,
		AppliedTick: tick,
		ExpireTick:  expireAt(tick, duration),
		Owner:       o.owner,
		index:       -1,
	}

	inherited := false
	if old := m.byLoc[loc]; old != nil {
		switch o.conflict {
		case Replace:
			mu.Prior, inherited = old.Prior, true
			m.detach(old)
			m.notifyReverted(old, true, map[string]any{"replaced_by": mu.Handle.String()})
		default:
			m.Revert(old.Handle)
		}
	}
	if !inherited {
		mu.Prior = m.cfg.World.LocationState(loc)
	}

	m.cfg.World.SetLocationState(loc, state)
	m.byLoc[loc] = mu
	m.byHandle[mu.Handle] = mu
	if mu.ExpireTick != Forever {
		heap.Push(&m.expiry, mu)
	}

	ev := protocol.NewEvent(protocol.EventMutationApplied, tick)
	ev.Partition = m.cfg.Partition
	ev.Location = loc.String()
	ev.Mutation = mu.Handle.String()
	ev.Instance = mu.Owner
	ev.Data = map[string]any{"prior": string(mu.Prior), "state": string(state), "expire_tick": mu.ExpireTick}
	m.cfg.Events.Post(ev)
	return mu.Handle, nil
}

func expireAt(tick, duration uint64) uint64 {
	if duration == Forever || tick > Forever-duration {
		return Forever
	}
	return tick + duration
}

// Revert restores the prior state of h. It reports false when h is unknown or
// already reverted. When the world no longer holds the state this mutation wrote,
// the restore is skipped so a later writer is not clobbered.
func (m *Manager) Revert(h Handle) bool {
	mu := m.byHandle[h]
	if mu == nil || mu.Reverted {
		return false
	}
	m.detach(mu)

	skipped := false
	if cur := m.cfg.World.LocationState(mu.Location); cur != mu.State {
		skipped = true
		m.logf("warn: mutation %s at %s: world holds %q, expected %q; restore skipped", mu.Handle, mu.Location, cur, mu.State)
	} else {
		m.cfg.World.SetLocationState(mu.Location, mu.Prior)
	}
	m.notifyReverted(mu, skipped, nil)
	return true
}

// detach drops mu from every index and marks it reverted.
func (m *Manager) detach(mu *Mutation) {
	mu.Reverted = true
	if m.byLoc[mu.Location] == mu {
		delete(m.byLoc, mu.Location)
	}
	delete(m.byHandle, mu.Handle)
	if mu.index >= 0 {
		heap.Remove(&m.expiry, mu.index)
	}
}

func (m *Manager) notifyReverted(mu *Mutation, skipped bool, data map[string]any) {
	ev := protocol.NewEvent(protocol.EventMutationReverted, m.tick())
	ev.Partition = m.cfg.Partition
	ev.Location = mu.Location.String()
	ev.Mutation = mu.Handle.String()
	ev.Instance = mu.Owner
	ev.Skipped = skipped
	ev.Data = data
	m.cfg.Events.Post(ev)
}

// Sweep reverts every mutation whose expire tick is at or before tick.
func (m *Manager) Sweep(tick uint64) int {
	m.lastTick = tick
	n := 0
	for m.expiry.Len() > 0 && m.expiry[0].ExpireTick <= tick {
		if m.Revert(m.expiry[0].Handle) {
			n++
		}
	}
	return n
}

// RevertOwned reverts every live mutation tagged with owner, oldest first.
func (m *Manager) RevertOwned(owner string) int {
	return m.revertWhere(func(mu *Mutation) bool { return mu.Owner == owner })
}

// RevertAll reverts every live mutation, oldest first.
func (m *Manager) RevertAll() int {
	return m.revertWhere(func(*Mutation) bool { return true })
}

func (m *Manager) revertWhere(match func(*Mutation) bool) int {
	var hs []Handle
	for h, mu := range m.byHandle {
		if match(mu) {
			hs = append(hs, h)
		}
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	n := 0
	for _, h := range hs {
		if m.Revert(h) {
			n++
		}
	}
	return n
}

// Get returns a copy of the live mutation at loc.
func (m *Manager) Get(loc host.Location) (Mutation, bool) {
	mu := m.byLoc[loc]
	if mu == nil {
		return Mutation{}, false
	}
	return *mu, true
}

// Lookup returns a copy of the live mutation h.
func (m *Manager) Lookup(h Handle) (Mutation, bool) {
	mu := m.byHandle[h]
	if mu == nil {
		return Mutation{}, false
	}
	return *mu, true
}

// Len is the number of live mutations.
func (m *Manager) Len() int { return len(m.byHandle) }
