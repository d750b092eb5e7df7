// Package scheduler owns the live ability instances of one partition and drives
// their lifecycle: activation, per-tick stepping and exactly-once destruction.
package scheduler

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/host"
)

var (
	ErrMethodNotSupported = errors.New("activation method not supported")
	ErrOnCooldown         = errors.New("ability on cooldown")
	ErrVetoed             = errors.New("activation vetoed")
	ErrRejected           = errors.New("activation rejected")
)

type record struct {
	inst    ability.Instance
	handle  ability.Handle
	pending bool
	dead    bool
}

// Scheduler is not safe for concurrent use; it belongs to the partition's tick goroutine.
type Scheduler struct {
	logger *log.Logger

	next     uint64
	pending  []*record
	active   []*record
	byHandle map[ability.Handle]*record
}

func New(logger *log.Logger) *Scheduler {
	return &Scheduler{logger: logger, byHandle: map[ability.Handle]*record{}}
}

func (s *Scheduler) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// TryActivate creates an instance of desc for user. Accepted instances wait in
// the pending queue until the next Promote.
func (s *Scheduler) TryActivate(env *ability.Env, user host.User, desc *ability.Description, method ability.Activation) (ability.Handle, error) {
	if !desc.Supports(method) {
		return 0, fmt.Errorf("activate %s via %s: %w", desc.Name, method, ErrMethodNotSupported)
	}
	if env.Cooldowns != nil && env.Cooldowns.OnCooldown(user.ID(), desc.Name) {
		return 0, fmt.Errorf("activate %s: %w", desc.Name, ErrOnCooldown)
	}
	prop := protocol.NewProposal(protocol.ProposalActivation, env.Tick)
	prop.User = user.ID().String()
	prop.Ability = desc.Name
	prop.Data = map[string]any{"method": method.String()}
	if !env.Propose(prop) {
		return 0, fmt.Errorf("activate %s: %w", desc.Name, ErrVetoed)
	}

	inst := desc.New(user)
	s.next++
	h := ability.Handle(s.next)
	inst.Base().Bind(h, env.Tick)
	ok, err := s.activate(env, inst, method)
	if err != nil {
		s.logf("warn: activate %s for %s: %v", desc.Name, user.Name(), err)
		return 0, fmt.Errorf("activate %s: %w", desc.Name, ErrRejected)
	}
	if !ok {
		return 0, fmt.Errorf("activate %s: %w", desc.Name, ErrRejected)
	}

	rec := &record{inst: inst, handle: h, pending: true}
	s.pending = append(s.pending, rec)
	s.byHandle[h] = rec

	ev := protocol.NewEvent(protocol.EventInstanceCreated, env.Tick)
	ev.User = user.ID().String()
	ev.Ability = desc.Name
	ev.Instance = h.String()
	ev.Data = map[string]any{"method": method.String()}
	env.Notify(ev)
	return h, nil
}

func (s *Scheduler) activate(env *ability.Env, inst ability.Instance, method ability.Activation) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return inst.Activate(env, method), nil
}

// Promote moves pending instances into the active set in activation order.
func (s *Scheduler) Promote() int {
	s.compact()
	n := 0
	for _, rec := range s.pending {
		if rec.dead {
			continue
		}
		rec.pending = false
		s.active = append(s.active, rec)
		n++
	}
	s.pending = s.pending[:0]
	return n
}

// Step runs one tick for every active instance: the removal policy is checked
// first, then Step. Instances activated while stepping stay pending.
func (s *Scheduler) Step(env *ability.Env) {
	active := s.active
	for _, rec := range active {
		if rec.dead {
			continue
		}
		if p, ok := rec.inst.(ability.Policied); ok {
			remove, err := s.checkPolicy(env, rec, p)
			if err != nil {
				s.logf("warn: instance %s (%s) policy panic: %v", rec.handle, rec.inst.Base().Description().Name, err)
				s.Destroy(env, rec.handle, protocol.ReasonFault)
				continue
			}
			if remove {
				s.Destroy(env, rec.handle, protocol.ReasonPolicy)
				continue
			}
		}
		res, err := s.step(env, rec)
		switch {
		case err != nil:
			s.logf("warn: instance %s (%s) step panic: %v", rec.handle, rec.inst.Base().Description().Name, err)
			s.Destroy(env, rec.handle, protocol.ReasonFault)
		case res == ability.Remove:
			s.Destroy(env, rec.handle, protocol.ReasonFinished)
		}
	}
	s.compact()
}

func (s *Scheduler) checkPolicy(env *ability.Env, rec *record, p ability.Policied) (remove bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	pol := p.RemovalPolicy()
	if pol == nil {
		return false, nil
	}
	return pol.ShouldRemove(env, rec.inst), nil
}

func (s *Scheduler) step(env *ability.Env, rec *record) (res ability.UpdateResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return rec.inst.Step(env), nil
}

func (s *Scheduler) compact() {
	out := s.active[:0]
	for _, rec := range s.active {
		if !rec.dead {
			out = append(out, rec)
		}
	}
	for i := len(out); i < len(s.active); i++ {
		s.active[i] = nil
	}
	s.active = out
}

// Destroy removes h. It reports false when h is unknown or already destroyed.
// OnDestroy runs exactly once.
func (s *Scheduler) Destroy(env *ability.Env, h ability.Handle, reason string) bool {
	rec := s.byHandle[h]
	if rec == nil || rec.dead {
		return false
	}
	rec.dead = true
	delete(s.byHandle, h)

	if err := s.cleanup(env, rec); err != nil {
		s.logf("warn: instance %s (%s) cleanup panic: %v", rec.handle, rec.inst.Base().Description().Name, err)
	}

	core := rec.inst.Base()
	ev := protocol.NewEvent(protocol.EventInstanceDestroyed, env.Tick)
	if u := core.User(); u != nil {
		ev.User = u.ID().String()
	}
	ev.Ability = core.Description().Name
	ev.Instance = h.String()
	ev.Reason = reason
	ev.Data = map[string]any{"lived_ticks": env.Tick - core.CreatedTick()}
	env.Notify(ev)
	return true
}

func (s *Scheduler) cleanup(env *ability.Env, rec *record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	rec.inst.OnDestroy(env)
	return nil
}

// DestroyUser destroys every live instance owned by user.
func (s *Scheduler) DestroyUser(env *ability.Env, user uuid.UUID, reason string) int {
	n := 0
	for _, rec := range s.ordered() {
		if u := rec.inst.Base().User(); u != nil && u.ID() == user {
			if s.Destroy(env, rec.handle, reason) {
				n++
			}
		}
	}
	s.compact()
	return n
}

// DestroyAll destroys every live instance, active ones first.
func (s *Scheduler) DestroyAll(env *ability.Env, reason string) int {
	n := 0
	for _, rec := range s.ordered() {
		if s.Destroy(env, rec.handle, reason) {
			n++
		}
	}
	s.compact()
	s.pending = s.pending[:0]
	return n
}

// ordered is a snapshot of live records: active in activation order, then pending.
func (s *Scheduler) ordered() []*record {
	out := make([]*record, 0, len(s.active)+len(s.pending))
	for _, rec := range s.active {
		if !rec.dead {
			out = append(out, rec)
		}
	}
	for _, rec := range s.pending {
		if !rec.dead {
			out = append(out, rec)
		}
	}
	return out
}

// Active returns the stepped instances in activation order.
func (s *Scheduler) Active() []ability.Instance {
	out := make([]ability.Instance, 0, len(s.active))
	for _, rec := range s.active {
		if !rec.dead {
			out = append(out, rec.inst)
		}
	}
	return out
}

// Live returns active and pending instances.
func (s *Scheduler) Live() []ability.Instance {
	recs := s.ordered()
	out := make([]ability.Instance, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.inst)
	}
	return out
}

func (s *Scheduler) Get(h ability.Handle) (ability.Instance, bool) {
	rec := s.byHandle[h]
	if rec == nil {
		return nil, false
	}
	return rec.inst, true
}

// IsPending reports whether h was accepted but not yet promoted.
func (s *Scheduler) IsPending(h ability.Handle) bool {
	rec := s.byHandle[h]
	return rec != nil && rec.pending
}

func (s *Scheduler) UserInstances(user uuid.UUID) []ability.Instance {
	var out []ability.Instance
	for _, rec := range s.ordered() {
		if u := rec.inst.Base().User(); u != nil && u.ID() == user {
			out = append(out, rec.inst)
		}
	}
	return out
}

func (s *Scheduler) HasInstance(user uuid.UUID, name string) bool {
	for _, inst := range s.UserInstances(user) {
		if inst.Base().Description().Name == name {
			return true
		}
	}
	return false
}

func (s *Scheduler) Len() int { return len(s.byHandle) }
