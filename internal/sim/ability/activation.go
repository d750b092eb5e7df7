package ability

import "fmt"

// Activation is the input method that triggers or feeds an ability.
type Activation uint8

const (
	Attack Activation = iota + 1
	Interact
	InteractEntity
	InteractBlock
	Sneak
	SneakRelease
	Fall
	Passive
	// Sequence marks abilities reachable only through a combo.
	Sequence
)

var activationNames = map[Activation]string{
	Attack:         "ATTACK",
	Interact:       "INTERACT",
	InteractEntity: "INTERACT_ENTITY",
	InteractBlock:  "INTERACT_BLOCK",
	Sneak:          "SNEAK",
	SneakRelease:   "SNEAK_RELEASE",
	Fall:           "FALL",
	Passive:        "PASSIVE",
	Sequence:       "SEQUENCE",
}

func (a Activation) String() string {
	if s, ok := activationNames[a]; ok {
		return s
	}
	return fmt.Sprintf("ACTIVATION(%d)", uint8(a))
}

// ParseActivation is the inverse of String.
func ParseActivation(s string) (Activation, bool) {
	for a, name := range activationNames {
		if name == s {
			return a, true
		}
	}
	return 0, false
}

// Step is one recorded input: the ability that was selected and how it was triggered.
type Step struct {
	Ability    string
	Activation Activation
}

func (s Step) String() string { return s.Ability + ":" + s.Activation.String() }
