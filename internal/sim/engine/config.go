package engine

import (
	"log"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/host"
)

// Sink receives every notification of a partition. Publish must not block the
// tick; slow sinks drop.
type Sink interface {
	Publish(ev protocol.Event)
}

type Config struct {
	Partition         string
	TickRateHz        int
	InboxSize         int
	SequenceIdleTicks uint64
	CollideSameUser   bool

	World host.World
	// Cooldowns defaults to a cooldown.Table driven by the engine clock.
	Cooldowns host.Cooldowns
	// Events receives veto proposals and notifications from the host side.
	Events host.EventPoster
	Sinks  []Sink
	Logger *log.Logger

	// PhaseHook, when set, is called at the start of every tick phase.
	PhaseHook func(tick uint64, p Phase)
}

func (c *Config) applyDefaults() {
	if c.Partition == "" {
		c.Partition = "default"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 1024
	}
	if c.Events == nil {
		c.Events = host.AllowAll
	}
}
