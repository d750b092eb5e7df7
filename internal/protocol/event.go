package protocol

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Notification types emitted after the fact.
const (
	EventInstanceCreated   = "instance_created"
	EventInstanceDestroyed = "instance_destroyed"
	EventCollision         = "collision"
	EventEntityHit         = "entity_hit"
	EventMutationApplied   = "mutation_applied"
	EventMutationReverted  = "mutation_reverted"
)

// Proposal types posted for veto before the engine commits to them.
const (
	ProposalActivation = "activation"
	ProposalCollision  = "collision"
	ProposalMutation   = "mutation"
)

// Destroy reasons carried in instance_destroyed.
const (
	ReasonFinished  = "finished"
	ReasonPolicy    = "policy"
	ReasonCollision = "collision"
	ReasonHit       = "hit"
	ReasonFault     = "fault"
	ReasonUser      = "user"
	ReasonShutdown  = "shutdown"
)

// Event is a single engine notification or veto proposal.
type Event struct {
	ID        ulid.ULID `json:"id"`
	Type      string    `json:"type"`
	Proposal  bool      `json:"proposal,omitempty"`
	Partition string    `json:"partition,omitempty"`
	Tick      uint64    `json:"tick"`
	Time      time.Time `json:"time"`

	User     string `json:"user,omitempty"`
	Ability  string `json:"ability,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Collision partner or hit entity.
	Other        string `json:"other,omitempty"`
	OtherAbility string `json:"other_ability,omitempty"`

	Reason   string `json:"reason,omitempty"`
	Location string `json:"location,omitempty"`
	Mutation string `json:"mutation,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`

	Data map[string]any `json:"data,omitempty"`
}

// NewEvent stamps a fresh ULID and wall time on a notification.
func NewEvent(typ string, tick uint64) Event {
	return Event{ID: ulid.Make(), Type: typ, Tick: tick, Time: time.Now().UTC()}
}

// NewProposal is NewEvent for veto proposals.
func NewProposal(typ string, tick uint64) Event {
	ev := NewEvent(typ, tick)
	ev.Proposal = true
	return ev
}

func IsKnownEventType(typ string) bool {
	switch typ {
	case EventInstanceCreated, EventInstanceDestroyed, EventCollision, EventEntityHit,
		EventMutationApplied, EventMutationReverted:
		return true
	}
	return false
}
