package engine

import "fmt"

// Phase is one stage of a tick. Phases always run in declaration order.
type Phase uint8

const (
	PhaseActivation Phase = iota + 1
	PhaseStep
	PhaseCollision
	PhaseSweep
)

func (p Phase) String() string {
	switch p {
	case PhaseActivation:
		return "activation"
	case PhaseStep:
		return "step"
	case PhaseCollision:
		return "collision"
	case PhaseSweep:
		return "sweep"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}
