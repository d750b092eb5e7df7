package sequence

import "voxelbend.ai/internal/sim/ability"

// buffer is a ring of the most recent steps; the oldest is evicted when full.
type buffer struct {
	steps      [BufferSize]ability.Step
	start, n   int
	lastAccess uint64
}

func (b *buffer) push(s ability.Step) {
	if b.n < BufferSize {
		b.steps[(b.start+b.n)%BufferSize] = s
		b.n++
		return
	}
	b.steps[b.start] = s
	b.start = (b.start + 1) % BufferSize
}

// fromEnd returns the i-th step counting back from the newest (0 is the newest).
func (b *buffer) fromEnd(i int) ability.Step {
	return b.steps[(b.start+b.n-1-i)%BufferSize]
}

func (b *buffer) clear() {
	b.start, b.n = 0, 0
}

// endsWith reports whether seq[n-1-i] == buf[last-i] for every step of seq.
func (b *buffer) endsWith(seq []ability.Step) bool {
	if len(seq) > b.n {
		return false
	}
	for i := 0; i < len(seq); i++ {
		if seq[len(seq)-1-i] != b.fromEnd(i) {
			return false
		}
	}
	return true
}

func (b *buffer) snapshot() []ability.Step {
	out := make([]ability.Step, b.n)
	for i := 0; i < b.n; i++ {
		out[i] = b.steps[(b.start+i)%BufferSize]
	}
	return out
}
