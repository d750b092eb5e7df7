package sequence

import (
	"github.com/google/uuid"

	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/host"
)

// Activator tries to start combo for user and reports whether it succeeded.
type Activator func(user host.User, combo string) bool

// Recognizer keeps one step buffer per user. Not safe for concurrent use.
type Recognizer struct {
	reg      *Registry
	activate Activator
	// idle is how many ticks a buffer survives without a new step; 0 keeps buffers forever.
	idle    uint64
	buffers map[uuid.UUID]*buffer
}

func NewRecognizer(reg *Registry, idleTicks uint64, activate Activator) *Recognizer {
	return &Recognizer{reg: reg, activate: activate, idle: idleTicks, buffers: map[uuid.UUID]*buffer{}}
}

// RegisterStep records step for user and tries every sequence in registration
// order. The first combo that activates consumes the buffer and is returned.
func (r *Recognizer) RegisterStep(tick uint64, user host.User, step ability.Step) (string, bool) {
	id := user.ID()
	b := r.buffers[id]
	if b == nil {
		b = &buffer{}
		r.buffers[id] = b
	} else if r.idle > 0 && tick > b.lastAccess && tick-b.lastAccess > r.idle {
		b.clear()
	}
	b.lastAccess = tick
	b.push(step)

	for _, seq := range r.reg.seqs {
		if !b.endsWith(seq.steps) {
			continue
		}
		if r.activate != nil && r.activate(user, seq.combo) {
			b.clear()
			return seq.combo, true
		}
	}
	return "", false
}

// Forget drops the buffer of a user who left.
func (r *Recognizer) Forget(user uuid.UUID) {
	delete(r.buffers, user)
}

// Buffer returns user's buffered steps, oldest first.
func (r *Recognizer) Buffer(user uuid.UUID) []ability.Step {
	b := r.buffers[user]
	if b == nil {
		return nil
	}
	return b.snapshot()
}

// Len is the number of users with a buffer.
func (r *Recognizer) Len() int { return len(r.buffers) }
