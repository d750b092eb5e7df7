// Package engine runs one partition of the ability simulation: a single goroutine
// that owns the scheduler, collision resolver, sequence recognizer and temporal
// mutation manager and advances them through fixed tick phases.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"voxelbend.ai/internal/protocol"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/collision"
	"voxelbend.ai/internal/sim/cooldown"
	"voxelbend.ai/internal/sim/host"
	"voxelbend.ai/internal/sim/scheduler"
	"voxelbend.ai/internal/sim/sequence"
	"voxelbend.ai/internal/sim/temporal"
)

var (
	ErrUnknownAbility = errors.New("unknown ability")
	ErrInboxFull      = errors.New("engine inbox full")
	ErrRunning        = errors.New("engine already running")
	ErrClosed         = errors.New("engine closed")
)

// Input is one queued user action, applied at the next tick boundary.
type Input struct {
	User   host.User
	Method ability.Activation
	// Ability activates a named ability directly. Empty means the user's
	// selected ability, which also feeds the combo recognizer.
	Ability string
	// Leave drops the user's instances and combo buffer.
	Leave bool
}

// Engine is a single-threaded partition. StepOnce, Activate, Register and the
// query methods must be called from one goroutine; while Run is active that is
// the Run goroutine, and other goroutines use Input/Submit.
type Engine struct {
	cfg    Config
	logger *log.Logger

	tick atomic.Uint64

	abilities  *ability.Registry
	sequences  *sequence.Registry
	recognizer *sequence.Recognizer
	sched      *scheduler.Scheduler
	resolver   *collision.Resolver
	mutations  *temporal.Manager
	cooldowns  host.Cooldowns
	bus        *bus
	env        *ability.Env

	inbox     chan Input
	stop      chan struct{}
	done      chan struct{}
	running   atomic.Bool
	closeOnce sync.Once
	closed    atomic.Bool

	stats statsCounters
}

type clockFunc func() uint64

func (f clockFunc) Tick() uint64 { return f() }

func New(cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	if cfg.World == nil {
		return nil, fmt.Errorf("engine %s: world is required", cfg.Partition)
	}
	e := &Engine{
		cfg:       cfg,
		logger:    cfg.Logger,
		abilities: ability.NewRegistry(),
		sched:     scheduler.New(cfg.Logger),
		resolver:  collision.New(collision.Config{CollideSameUser: cfg.CollideSameUser, Logger: cfg.Logger}),
		inbox:     make(chan Input, cfg.InboxSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	clock := clockFunc(e.CurrentTick)
	e.bus = &bus{partition: cfg.Partition, host: cfg.Events, sinks: cfg.Sinks}
	e.cooldowns = cfg.Cooldowns
	if e.cooldowns == nil {
		e.cooldowns = cooldown.New(clock)
	}
	e.mutations = temporal.NewManager(temporal.Config{
		Partition: cfg.Partition,
		World:     cfg.World,
		Events:    e.bus,
		Clock:     clock,
		Logger:    cfg.Logger,
	})
	e.sequences = sequence.NewRegistry(e.abilities)
	e.recognizer = sequence.NewRecognizer(e.sequences, cfg.SequenceIdleTicks, e.activateCombo)
	e.env = &ability.Env{
		Partition: cfg.Partition,
		World:     cfg.World,
		Cooldowns: e.cooldowns,
		Events:    e.bus,
		Mutations: e.mutations,
		Logger:    cfg.Logger,
	}
	return e, nil
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

func (e *Engine) Partition() string { return e.cfg.Partition }

func (e *Engine) TickRateHz() int { return e.cfg.TickRateHz }

// CurrentTick is the number of the next tick to run.
func (e *Engine) CurrentTick() uint64 { return e.tick.Load() }

func (e *Engine) Register(desc *ability.Description) error {
	return e.abilities.Register(desc)
}

func (e *Engine) RegisterSequence(seq sequence.Sequence) error {
	return e.sequences.Register(seq)
}

func (e *Engine) Abilities() *ability.Registry { return e.abilities }

// Activate tries to start ability for user right away. The instance steps from
// the next tick's activation phase on.
func (e *Engine) Activate(user host.User, name string, method ability.Activation) (ability.Handle, error) {
	desc, ok := e.abilities.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("activate %s: %w", name, ErrUnknownAbility)
	}
	e.env.Tick = e.CurrentTick()
	h, err := e.sched.TryActivate(e.env, user, desc, method)
	if err != nil {
		e.stats.rejected.Add(1)
		return 0, err
	}
	e.stats.activated.Add(1)
	return h, nil
}

func (e *Engine) activateCombo(user host.User, combo string) bool {
	_, err := e.Activate(user, combo, ability.Sequence)
	return err == nil
}

// Input queues method for user's selected ability.
func (e *Engine) Input(user host.User, method ability.Activation) error {
	return e.Submit(Input{User: user, Method: method})
}

// Leave queues the removal of everything user owns in this partition.
func (e *Engine) Leave(user host.User) error {
	return e.Submit(Input{User: user, Leave: true})
}

// Submit queues in without blocking.
func (e *Engine) Submit(in Input) error {
	if e.closed.Load() {
		return ErrClosed
	}
	select {
	case e.inbox <- in:
		return nil
	default:
		e.stats.dropped.Add(1)
		return ErrInboxFull
	}
}

// Run ticks at TickRateHz until ctx is done or Close is called. Inputs received
// between ticks are applied at the next tick boundary; inputs still waiting
// when Run returns are counted as dropped.
func (e *Engine) Run(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(e.done)

	ticker := time.NewTicker(time.Second / time.Duration(e.cfg.TickRateHz))
	defer ticker.Stop()

	var pending []Input
	for {
		select {
		case <-ctx.Done():
			e.discard(len(pending))
			return ctx.Err()
		case <-e.stop:
			e.discard(len(pending) + len(e.drainInbox()))
			return nil
		case in := <-e.inbox:
			pending = append(pending, in)
		case <-ticker.C:
			e.StepOnce(pending)
			pending = pending[:0]
		}
	}
}

func (e *Engine) discard(n int) {
	if n == 0 {
		return
	}
	e.stats.dropped.Add(uint64(n))
	e.logf("warn: %d queued inputs dropped at tick %d", n, e.CurrentTick())
}

// Tick runs one tick with whatever is queued in the inbox.
func (e *Engine) Tick() uint64 {
	return e.StepOnce(e.drainInbox())
}

func (e *Engine) drainInbox() []Input {
	var out []Input
	for {
		select {
		case in := <-e.inbox:
			out = append(out, in)
		default:
			return out
		}
	}
}

// StepOnce advances the partition by one tick: activation (promote pending,
// apply inputs), step, collisions, mutation sweep. It returns the tick it ran.
func (e *Engine) StepOnce(inputs []Input) uint64 {
	start := time.Now()
	tick := e.tick.Load()
	e.env.Tick = tick

	e.phase(tick, PhaseActivation)
	e.sched.Promote()
	for _, in := range inputs {
		e.apply(tick, in)
	}

	e.phase(tick, PhaseStep)
	e.sched.Step(e.env)

	e.phase(tick, PhaseCollision)
	res := e.resolver.Resolve(e.env, e.sched)

	e.phase(tick, PhaseSweep)
	reverted := e.mutations.Sweep(tick)

	if t, ok := e.cooldowns.(*cooldown.Table); ok && tick%100 == 0 {
		t.Prune()
	}

	e.stats.observe(tick, e.sched.Len(), e.mutations.Len(), res, reverted, time.Since(start))
	e.tick.Add(1)
	return tick
}

func (e *Engine) phase(tick uint64, p Phase) {
	if e.cfg.PhaseHook != nil {
		e.cfg.PhaseHook(tick, p)
	}
}

func (e *Engine) apply(tick uint64, in Input) {
	if in.User == nil {
		return
	}
	if in.Leave {
		n := e.sched.DestroyUser(e.env, in.User.ID(), protocol.ReasonUser)
		e.recognizer.Forget(in.User.ID())
		e.logf("user %s left: %d instances destroyed", in.User.Name(), n)
		return
	}
	if in.Ability != "" {
		e.Activate(in.User, in.Ability, in.Method)
		return
	}
	selected := in.User.SelectedAbility()
	if selected == "" {
		return
	}
	e.recognizer.RegisterStep(tick, in.User, ability.Step{Ability: selected, Activation: in.Method})
	if desc, ok := e.abilities.Lookup(selected); ok && desc.Supports(in.Method) {
		e.Activate(in.User, selected, in.Method)
	}
}

func (e *Engine) ApplyTemporaryMutation(loc host.Location, state host.State, duration uint64, opts ...temporal.Option) (temporal.Handle, error) {
	return e.mutations.Apply(e.CurrentTick(), loc, state, duration, opts...)
}

func (e *Engine) RevertMutation(h temporal.Handle) bool {
	return e.mutations.Revert(h)
}

// Mutation returns the live mutation at loc.
func (e *Engine) Mutation(loc host.Location) (temporal.Mutation, bool) {
	return e.mutations.Get(loc)
}

// Instance returns the live instance h.
func (e *Engine) Instance(h ability.Handle) (ability.Instance, bool) {
	return e.sched.Get(h)
}

func (e *Engine) Live() []ability.Instance { return e.sched.Live() }

// Destroy removes a live instance on behalf of the host.
func (e *Engine) Destroy(h ability.Handle) bool {
	e.env.Tick = e.CurrentTick()
	return e.sched.Destroy(e.env, h, protocol.ReasonUser)
}

// Close stops Run, destroys every instance and reverts every mutation. It is
// safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.stop)
		if e.running.Load() {
			<-e.done
		}
		e.env.Tick = e.CurrentTick()
		n := e.sched.DestroyAll(e.env, protocol.ReasonShutdown)
		m := e.mutations.RevertAll()
		e.logf("closed at tick %d: %d instances destroyed, %d mutations reverted", e.CurrentTick(), n, m)
	})
	return nil
}
