// Package sequence recognizes multi-step input combos. Every user has a bounded
// buffer of recent steps; a combo fires when its steps form the buffer's suffix.
package sequence

import (
	"errors"
	"fmt"

	"voxelbend.ai/internal/sim/ability"
)

const (
	MinSteps = 2
	MaxSteps = 16
	// BufferSize is the number of recent steps remembered per user.
	BufferSize = 16
)

var (
	ErrTooFewSteps       = errors.New("sequence has too few steps")
	ErrTooManySteps      = errors.New("sequence has too many steps")
	ErrUnknownAbility    = errors.New("sequence references unknown ability")
	ErrDuplicateSequence = errors.New("combo already has a sequence")
)

// Sequence is an immutable combo definition.
type Sequence struct {
	combo string
	steps []ability.Step
}

func New(combo string, steps ...ability.Step) (Sequence, error) {
	if len(steps) < MinSteps {
		return Sequence{}, fmt.Errorf("sequence %s with %d steps: %w", combo, len(steps), ErrTooFewSteps)
	}
	if len(steps) > MaxSteps {
		return Sequence{}, fmt.Errorf("sequence %s with %d steps: %w", combo, len(steps), ErrTooManySteps)
	}
	cp := make([]ability.Step, len(steps))
	copy(cp, steps)
	return Sequence{combo: combo, steps: cp}, nil
}

func (s Sequence) Combo() string { return s.combo }

func (s Sequence) Len() int { return len(s.steps) }

func (s Sequence) Steps() []ability.Step {
	out := make([]ability.Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// Registry holds sequences in registration order.
type Registry struct {
	abilities *ability.Registry
	seqs      []Sequence
	byCombo   map[string]struct{}
}

func NewRegistry(abilities *ability.Registry) *Registry {
	return &Registry{abilities: abilities, byCombo: map[string]struct{}{}}
}

// Register checks that the combo and every step ability exist and that the combo
// has no sequence yet.
func (r *Registry) Register(seq Sequence) error {
	if len(seq.steps) == 0 {
		return fmt.Errorf("register sequence %s: %w", seq.combo, ErrTooFewSteps)
	}
	if _, ok := r.abilities.Lookup(seq.combo); !ok {
		return fmt.Errorf("register sequence %s: combo: %w", seq.combo, ErrUnknownAbility)
	}
	for i, st := range seq.steps {
		if _, ok := r.abilities.Lookup(st.Ability); !ok {
			return fmt.Errorf("register sequence %s: step %d (%s): %w", seq.combo, i, st.Ability, ErrUnknownAbility)
		}
	}
	if _, ok := r.byCombo[seq.combo]; ok {
		return fmt.Errorf("register sequence %s: %w", seq.combo, ErrDuplicateSequence)
	}
	r.byCombo[seq.combo] = struct{}{}
	r.seqs = append(r.seqs, seq)
	return nil
}

func (r *Registry) Sequences() []Sequence {
	out := make([]Sequence, len(r.seqs))
	copy(out, r.seqs)
	return out
}

func (r *Registry) Len() int { return len(r.seqs) }
