package ability

import (
	"log"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/temporal"
)

// Env is what instance hooks see of the engine during a tick.
type Env struct {
	Tick      uint64
	Partition string
	World     host.World
	Cooldowns host.Cooldowns
	Events    host.EventPoster
	Mutations *temporal.Manager
	Logger    *log.Logger
}

// Notify stamps the partition and posts a notification.
func (e *Env) Notify(ev protocol.Event) {
	if e.Events == nil {
		return
	}
	ev.Partition = e.Partition
	e.Events.Post(ev)
}

// Propose posts a veto proposal and reports whether it was accepted.
func (e *Env) Propose(ev protocol.Event) bool {
	if e.Events == nil {
		return true
	}
	ev.Partition = e.Partition
	return e.Events.Post(ev)
}

func (e *Env) Logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// ApplyTemporary writes a temporary block owned by inst.
func (e *Env) ApplyTemporary(inst Instance, loc host.Location, state host.State, duration uint64, opts ...temporal.Option) (temporal.Handle, error) {
	opts = append([]temporal.Option{temporal.WithOwner(inst.Base().Owner())}, opts...)
	return e.Mutations.Apply(e.Tick, loc, state, duration, opts...)
}

// StartCooldown puts inst's ability on cooldown for its owner.
func (e *Env) StartCooldown(inst Instance) {
	c := inst.Base()
	if e.Cooldowns == nil || c.User() == nil || c.Description().Cooldown == 0 {
		return
	}
	e.Cooldowns.AddCooldown(c.User().ID(), c.Description().Name, c.Description().Cooldown)
}
