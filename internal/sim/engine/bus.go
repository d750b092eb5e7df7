package engine

import (
	"sync/atomic"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/host"
)

// bus is the engine's host.EventPoster. Proposals go to the host poster only;
// notifications go to the host poster and every sink.
type bus struct {
	partition string
	host      host.EventPoster
	sinks     []Sink

	published atomic.Uint64
	vetoed    atomic.Uint64
}

func (b *bus) Post(ev protocol.Event) bool {
	if ev.Partition == "" {
		ev.Partition = b.partition
	}
	if ev.Proposal {
		ok := b.host.Post(ev)
		if !ok {
			b.vetoed.Add(1)
		}
		return ok
	}
	b.host.Post(ev)
	for _, s := range b.sinks {
		s.Publish(ev)
	}
	b.published.Add(1)
	return true
}
