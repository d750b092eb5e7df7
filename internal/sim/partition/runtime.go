package partition

import (
	"fmt"
	"io"
	"log"

	"voxelbend.ai/internal/sim/abilities"
	"voxelbend.ai/internal/sim/engine"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/memworld"
	"voxelbend.ai/internal/sim/tuning"
)

// Runtime is one partition: its world and the engine that owns it.
type Runtime struct {
	Spec   Spec
	World  *memworld.World
	Engine *engine.Engine
}

// Options are shared by every runtime built from a Config.
type Options struct {
	Tuning tuning.Tuning
	// Events sees every proposal and notification; nil allows everything.
	Events host.EventPoster
	Sinks  []engine.Sink
	// LogOutput receives engine logs; nil disables them.
	LogOutput io.Writer
}

// NewRuntime builds an in-memory world and an engine with the sample abilities
// for spec.
func NewRuntime(spec Spec, opts Options) (*Runtime, error) {
	t := opts.Tuning
	cfg := engine.Config{
		Partition:         spec.ID,
		TickRateHz:        pick(spec.TickRateHz, t.TickRateHz),
		InboxSize:         pick(spec.InboxSize, t.InboxSize),
		SequenceIdleTicks: t.SequenceIdleTicks,
		CollideSameUser:   spec.CollideSameUser || t.CollideSameUser,
		Events:            opts.Events,
		Sinks:             opts.Sinks,
	}
	if spec.SequenceIdleTicks > 0 {
		cfg.SequenceIdleTicks = spec.SequenceIdleTicks
	}
	if opts.LogOutput != nil {
		cfg.Logger = log.New(opts.LogOutput, "[engine:"+spec.ID+"] ", log.LstdFlags|log.Lmicroseconds)
	}
	world := memworld.New()
	cfg.World = world
	e, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := abilities.Register(e, t.Abilities, spec.Abilities); err != nil {
		return nil, fmt.Errorf("partition %s: %w", spec.ID, err)
	}
	return &Runtime{Spec: spec, World: world, Engine: e}, nil
}

// Build creates a runtime for every partition in cfg.
func Build(cfg Config, opts Options) (map[string]*Runtime, error) {
	out := make(map[string]*Runtime, len(cfg.Partitions))
	for _, spec := range cfg.Partitions {
		rt, err := NewRuntime(spec, opts)
		if err != nil {
			for _, built := range out {
				built.Engine.Close()
			}
			return nil, err
		}
		out[spec.ID] = rt
	}
	return out, nil
}

func pick(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
